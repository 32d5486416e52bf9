package domain

// ChunkMetadata locates a chunk inside its source document.
type ChunkMetadata struct {
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
	Domain  string `json:"domain,omitempty"`
}

// Chunk is the atomic retrieval unit produced by ingestion. Chunks are never
// modified after they are built.
type Chunk struct {
	Content   string        `json:"content"`
	Embedding []float32     `json:"embedding,omitempty"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// HasEmbedding reports whether the chunk can take part in semantic scoring.
func (c Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// Collections is the read-only set of per-domain chunk sequences served by
// the search engine. Domain order is the catalog declaration order.
type Collections struct {
	order    []string
	byDomain map[string][]Chunk
}

func NewCollections(order []string, byDomain map[string][]Chunk) *Collections {
	names := make([]string, 0, len(order))
	chunks := make(map[string][]Chunk, len(order))
	for _, name := range order {
		if _, dup := chunks[name]; dup {
			continue
		}
		names = append(names, name)
		src := byDomain[name]
		cp := make([]Chunk, len(src))
		copy(cp, src)
		chunks[name] = cp
	}
	return &Collections{order: names, byDomain: chunks}
}

func (c *Collections) Domains() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Collections) Load(name string) ([]Chunk, bool) {
	chunks, ok := c.byDomain[name]
	return chunks, ok
}

func (c *Collections) Has(name string) bool {
	_, ok := c.byDomain[name]
	return ok
}

func (c *Collections) Size(name string) int {
	return len(c.byDomain[name])
}
