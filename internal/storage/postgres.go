package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/xaenox/tempo-bot/internal/models"
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
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	// Read migrations file
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	// Execute migrations
	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (user_id, first_name, last_name, username)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			username = EXCLUDED.username`

	if _, err := s.db.ExecContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Username); err != nil {
		return fmt.Errorf("error upserting user: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetThread(ctx context.Context, userID int64, assistantID string) (string, error) {
	query := `SELECT thread_id FROM threads WHERE user_id = $1 AND assistant_id = $2`

	var threadID string
	err := s.db.QueryRowContext(ctx, query, userID, assistantID).Scan(&threadID)
	if err == sql.ErrNoRows {
		return "", ErrThreadNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error querying thread: %v", err)
	}

	return threadID, nil
}

func (s *PostgresStorage) SaveThread(ctx context.Context, thread *models.Thread) error {
	query := `
		INSERT INTO threads (thread_id, user_id, assistant_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, assistant_id) DO UPDATE SET
			thread_id = EXCLUDED.thread_id,
			last_used_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query,
		thread.ID, thread.UserID, thread.AssistantID); err != nil {
		return fmt.Errorf("error saving thread: %v", err)
	}

	return nil
}

func (s *PostgresStorage) UpdateThreadLastUsed(ctx context.Context, userID int64, assistantID string) error {
	query := `UPDATE threads SET last_used_at = NOW() WHERE user_id = $1 AND assistant_id = $2`

	if _, err := s.db.ExecContext(ctx, query, userID, assistantID); err != nil {
		return fmt.Errorf("error updating thread last used: %v", err)
	}

	return nil
}

func (s *PostgresStorage) AppendMessage(ctx context.Context, entry *models.MessageLogEntry) error {
	query := `
		INSERT INTO messages (id, thread_id, sender, content, message_type)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.ThreadID, entry.Sender, entry.Content, entry.Type); err != nil {
		return fmt.Errorf("error appending message: %v", err)
	}

	return nil
}

func (s *PostgresStorage) ListThreadMessages(ctx context.Context, threadID string) ([]*models.MessageLogEntry, error) {
	query := `
		SELECT id, thread_id, sender, content, message_type, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %v", err)
	}
	defer rows.Close()

	var entries []*models.MessageLogEntry
	for rows.Next() {
		entry := &models.MessageLogEntry{}
		if err := rows.Scan(
			&entry.ID,
			&entry.ThreadID,
			&entry.Sender,
			&entry.Content,
			&entry.Type,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning message: %v", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (s *PostgresStorage) SaveAnalysis(ctx context.Context, userID int64, threadID string, analysis *models.Analysis) error {
	query := `
		INSERT INTO analyses (user_id, thread_id, qualified, interest_level, response_time, respond_cue)
		VALUES ($1, $2, $3, $4, $5, $6)`

	var responseTime sql.NullInt64
	if analysis.ResponseTime != nil {
		responseTime = sql.NullInt64{Int64: int64(*analysis.ResponseTime), Valid: true}
	}
	var cue sql.NullInt64
	if analysis.RespondCue != nil {
		cue = sql.NullInt64{Int64: int64(*analysis.RespondCue), Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, query,
		userID, threadID, analysis.Qualified, analysis.Interest, responseTime, cue); err != nil {
		return fmt.Errorf("error saving analysis: %v", err)
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
