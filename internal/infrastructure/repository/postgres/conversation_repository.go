package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
)

var _ ports.ConversationStore = (*ConversationRepository)(nil)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Append(ctx context.Context, conversationID string, turn domain.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversation_turns (conversation_id, role, content, created_at)
VALUES ($1,$2,$3,$4)
`, conversationID, turn.Role, turn.Content, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}
	return nil
}

// History returns turns in insertion order; an unknown id yields no turns.
func (r *ConversationRepository) History(ctx context.Context, conversationID string) ([]domain.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content, created_at
FROM conversation_turns
WHERE conversation_id = $1
ORDER BY id ASC
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list conversation turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Turn, 0)
	for rows.Next() {
		var turn domain.Turn
		if err := rows.Scan(&turn.Role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation turns: %w", err)
	}
	return out, nil
}
