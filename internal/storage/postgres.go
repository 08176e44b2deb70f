package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/ravianlabs/quantum-chat/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) CreateConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	convo := &models.Conversation{
		ID:     uuid.New(),
		UserID: userID,
		Title:  models.DefaultTitle,
	}

	query := `
		INSERT INTO conversations (id, user_id, title)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query, convo.ID, convo.UserID, convo.Title).
		Scan(&convo.CreatedAt, &convo.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}

	return convo, nil
}

func (s *PostgresStorage) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1`

	convo := &models.Conversation{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&convo.ID,
		&convo.UserID,
		&convo.Title,
		&convo.CreatedAt,
		&convo.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying conversation: %w", err)
	}

	return convo, nil
}

func (s *PostgresStorage) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	var convos []*models.Conversation
	for rows.Next() {
		convo := &models.Conversation{}
		err := rows.Scan(
			&convo.ID,
			&convo.UserID,
			&convo.Title,
			&convo.CreatedAt,
			&convo.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		convos = append(convos, convo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return convos, nil
}

func (s *PostgresStorage) RenameConversation(ctx context.Context, id uuid.UUID, title string) error {
	query := `
		UPDATE conversations
		SET title = $1, updated_at = now()
		WHERE id = $2`

	result, err := s.db.ExecContext(ctx, query, title, id)
	if err != nil {
		return fmt.Errorf("error renaming conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (s *PostgresStorage) RenameConversationIfDefault(ctx context.Context, id uuid.UUID, title string) error {
	query := `
		UPDATE conversations
		SET title = $1, updated_at = now()
		WHERE id = $2 AND title = $3`

	// Zero rows affected means either the title was already rewritten
	// by a concurrent first turn or the conversation is gone; both are
	// fine to ignore here.
	if _, err := s.db.ExecContext(ctx, query, title, id, models.DefaultTitle); err != nil {
		return fmt.Errorf("error renaming conversation: %w", err)
	}

	return nil
}

func (s *PostgresStorage) TouchConversation(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE conversations
		SET updated_at = now()
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error touching conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (s *PostgresStorage) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	// Messages are removed by the ON DELETE CASCADE foreign key, so a
	// single statement keeps the delete atomic.
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (s *PostgresStorage) CountConversations(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting conversations: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) AppendMessage(ctx context.Context, conversationID uuid.UUID, userID string, role models.Role, content string) (*models.Message, error) {
	if err := models.ValidateMessage(role, content); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
	}

	query := `
		INSERT INTO messages (id, conversation_id, user_id, role, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		msg.ID, msg.ConversationID, msg.UserID, msg.Role, msg.Content).
		Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error appending message: %w", err)
	}

	return msg, nil
}

func (s *PostgresStorage) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	// seq breaks created_at ties in insertion order.
	query := `
		SELECT id, conversation_id, user_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.UserID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return msgs, nil
}

func (s *PostgresStorage) GetUsage(ctx context.Context, userID, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT requests_count FROM api_usage WHERE user_id = $1 AND date = $2`,
		userID, day).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error querying usage: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) IncrementUsage(ctx context.Context, userID, day string, limit int) (int, error) {
	// Capped atomic upsert: the conditional update refuses to move the
	// counter past the limit, and zero returned rows means the day is
	// already full. Two concurrent turns can neither lose an update
	// nor overshoot the cap.
	query := `
		INSERT INTO api_usage (user_id, date, requests_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, date)
		DO UPDATE SET requests_count = api_usage.requests_count + 1
		WHERE api_usage.requests_count < $3
		RETURNING requests_count`

	var count int
	err := s.db.QueryRowContext(ctx, query, userID, day, limit).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrQuotaExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("error incrementing usage: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) TotalRequests(ctx context.Context, userID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(requests_count), 0) FROM api_usage WHERE user_id = $1`,
		userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("error summing usage: %w", err)
	}
	return total, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
