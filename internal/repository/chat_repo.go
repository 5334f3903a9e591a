package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"aichat-backend/internal/models"
)

// ChatRepo persists conversations and their append-only messages.
//
// Appends to the same conversation are serialized by a row lock on the
// conversation, so message order matches call order; appends to different
// conversations lock different rows and never block each other. The lock is
// held only for the insert itself, never across an inference call.
type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{ID: uuid.New(), UserID: userID}

	query := `INSERT INTO conversations (id, user_id) VALUES ($1, $2) RETURNING created_at`
	if err := r.pool.QueryRow(ctx, query, c.ID, c.UserID).Scan(&c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ChatRepo) AppendMessage(ctx context.Context, conversationID uuid.UUID, sender models.Sender, content string) (*models.Message, error) {
	// Mirrors the CHECK constraint on messages.sender, without a round trip.
	if !sender.Valid() {
		return nil, fmt.Errorf("invalid sender %q", sender)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Serializes appends per conversation and reports NotFound in one step.
	var owner uuid.UUID
	err = tx.QueryRow(ctx, `SELECT user_id FROM conversations WHERE id = $1 FOR UPDATE`, conversationID).Scan(&owner)
	if err != nil {
		return nil, mapNoRows(err)
	}

	m := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
	}

	// created_at never regresses within a conversation.
	query := `
		INSERT INTO messages (id, conversation_id, sender, content, created_at)
		SELECT $1, $2, $3, $4, GREATEST(clock_timestamp(), COALESCE(MAX(created_at), 'epoch'))
		FROM messages WHERE conversation_id = $2
		RETURNING created_at`

	if err := tx.QueryRow(ctx, query, m.ID, m.ConversationID, m.Sender, m.Content).Scan(&m.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *ChatRepo) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	query := `
		SELECT c.id, c.created_at, COALESCE(m.content, '')
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT content FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at ASC
			LIMIT 1
		) m ON TRUE
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var s models.ConversationSummary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.Preview); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func (r *ChatRepo) GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	query := `SELECT id, user_id, created_at FROM conversations WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, conversationID).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, sender, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Messages = make([]*models.Message, 0)
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		c.Messages = append(c.Messages, m)
	}

	return c, rows.Err()
}

// DeleteConversation is idempotent; messages go with the conversation via
// ON DELETE CASCADE.
func (r *ChatRepo) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID)
	return err
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
