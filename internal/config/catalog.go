package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

type catalogFile struct {
	Domains []catalogEntry `yaml:"domains"`
}

type catalogEntry struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	Keywords         []string `yaml:"keywords"`
	OverridePriority int      `yaml:"override_priority"`
	Sources          []string `yaml:"sources"`
}

// DefaultCatalog returns the built-in clinical, food security and general
// domains. General keywords are checked first so technology queries are not
// pulled into a specialised domain by a single shared term.
func DefaultCatalog() []domain.DomainDescriptor {
	return []domain.DomainDescriptor{
		{
			Name:             domain.DomainClinical,
			Description:      "Medical topics, healthcare, diseases, symptoms, treatment, diagnosis, medication, patients, doctors, hospitals, clinical trials, medical research, medical technology, health conditions",
			Keywords:         []string{"medical", "disease", "symptom", "diagnosis", "doctor", "patient", "treatment"},
			OverridePriority: 2,
			Sources:          []string{"ctg-studies.pdf"},
		},
		{
			Name:             domain.DomainFoodSecurity,
			Description:      "Agriculture, farming, crops, livestock, irrigation, food production, hunger, malnutrition, sustainable agriculture, food systems, agricultural policy, food distribution, food supply chains",
			Keywords:         []string{"food", "agriculture", "farm", "crop", "harvest", "nutrition", "hunger"},
			OverridePriority: 3,
			Sources:          []string{"cd1254en.pdf"},
		},
		{
			Name:             domain.DomainGeneral,
			Description:      "General knowledge, technology, science, history, culture, education, business, entertainment, sports, politics, news, information, arts, artificial intelligence, computers, internet",
			Keywords:         []string{"ai", "artificial intelligence", "computer", "technology", "digital", "internet", "robot"},
			OverridePriority: 1,
		},
	}
}

// LoadCatalog reads the YAML domain catalog at path. An empty path or a
// missing file yields DefaultCatalog.
func LoadCatalog(path string) ([]domain.DomainDescriptor, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultCatalog(), nil
		}
		return nil, fmt.Errorf("read domain catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) ([]domain.DomainDescriptor, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse domain catalog: %w", err)
	}
	if len(file.Domains) == 0 {
		return nil, fmt.Errorf("parse domain catalog: no domains defined")
	}

	seen := make(map[string]struct{}, len(file.Domains))
	out := make([]domain.DomainDescriptor, 0, len(file.Domains))
	for i, entry := range file.Domains {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("parse domain catalog: domain #%d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("parse domain catalog: duplicate domain %q", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(entry.Description) == "" {
			return nil, fmt.Errorf("parse domain catalog: domain %q has no description", name)
		}
		out = append(out, domain.DomainDescriptor{
			Name:             name,
			Description:      entry.Description,
			Keywords:         entry.Keywords,
			OverridePriority: entry.OverridePriority,
			Sources:          entry.Sources,
		})
	}
	if _, ok := seen[domain.DomainGeneral]; !ok {
		return nil, fmt.Errorf("parse domain catalog: %q domain is required", domain.DomainGeneral)
	}
	return out, nil
}

// DomainNames lists catalog names in catalog order.
func DomainNames(catalog []domain.DomainDescriptor) []string {
	names := make([]string, 0, len(catalog))
	for _, d := range catalog {
		names = append(names, d.Name)
	}
	return names
}
