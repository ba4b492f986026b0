package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-server/logger"
	"quiz-server/models"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InitDB initializes the PostgreSQL database connection pool
func InitDB(ctx context.Context, connString string, log *logger.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Ping the database to verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("connected to PostgreSQL")
	return pool, nil
}

// CreateSchema sets up the tables used by the quiz server.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(80) NOT NULL UNIQUE,
		email VARCHAR(120) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS questions (
		id SERIAL PRIMARY KEY,
		question_text TEXT NOT NULL,
		options TEXT[] NOT NULL,
		correct_answers TEXT[] NOT NULL,
		explanation TEXT,
		image_filename TEXT,
		CHECK (cardinality(options) >= 1),
		CHECK (cardinality(correct_answers) >= 1),
		CHECK (correct_answers <@ options) -- every correct answer is an option
	);

	CREATE TABLE IF NOT EXISTS answer_events (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		question_id INT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		selected_options TEXT[] NOT NULL,
		is_correct BOOLEAN NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS answer_events_user_question_idx ON answer_events (user_id, question_id);
	CREATE INDEX IF NOT EXISTS answer_events_created_at_idx ON answer_events (created_at);

	CREATE TABLE IF NOT EXISTS check_marks (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		question_id INT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		category VARCHAR(20) NOT NULL CHECK (category IN ('important', 'weak', 'later')),
		is_checked BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, question_id, category)
	);

	CREATE TABLE IF NOT EXISTS exam_results (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		score INT NOT NULL,
		total_questions INT NOT NULL,
		submitted_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		details JSONB NOT NULL -- snapshot, independent of later question edits
	);

	CREATE TABLE IF NOT EXISTS error_logs (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		source TEXT NOT NULL, -- e.g. "csv_import", "seed"
		file_path TEXT,
		line_number INT,
		field_name TEXT,
		error_message TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS admin_events (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		action VARCHAR(255),
		actor VARCHAR(255), -- username or 'system'
		target TEXT,        -- e.g. question id, result id
		notes TEXT
	);
	`
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}
	return nil
}

// LogStore writes the audit tables: error_logs and admin_events.
type LogStore struct {
	db  DBTX
	log *logger.Logger
}

func NewLogStore(db DBTX, baseLog *logger.Logger) *LogStore {
	return &LogStore{db: db, log: baseLog.With("repo", "LogStore")}
}

// LogError adds an entry to the error_logs table. Failures are logged, not returned.
func (s *LogStore) LogError(ctx context.Context, source, filePath string, lineNumber int, fieldName, errMsg string) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO error_logs (source, file_path, line_number, field_name, error_message)
		VALUES ($1, $2, $3, $4, $5)
	`, source, filePath, lineNumber, fieldName, errMsg)
	if err != nil {
		s.log.Error("failed to log error to database", "error", err, "original", errMsg)
	}
}

// LogAdminEvent adds an entry to the admin_events table. Failures are logged, not returned.
func (s *LogStore) LogAdminEvent(ctx context.Context, actor, action, target, notes string) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO admin_events (action, actor, target, notes)
		VALUES ($1, $2, $3, $4)
	`, action, actor, target, notes)
	if err != nil {
		s.log.Error("failed to log admin event", "error", err, "action", action, "actor", actor, "target", target)
	}
}

// RecentAdminEvents returns the newest admin events first.
func (s *LogStore) RecentAdminEvents(ctx context.Context, limit int) ([]models.AdminEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, timestamp, COALESCE(action, ''), COALESCE(actor, ''), COALESCE(target, ''), COALESCE(notes, '')
		FROM admin_events ORDER BY timestamp DESC, id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin events: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AdminEvent, error) {
		var ae models.AdminEvent
		err := row.Scan(&ae.ID, &ae.Timestamp, &ae.Action, &ae.Actor, &ae.Target, &ae.Notes)
		return ae, err
	})
}

// RecentErrors returns the newest error_logs rows first.
func (s *LogStore) RecentErrors(ctx context.Context, limit int) ([]models.ErrorLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, timestamp, source, COALESCE(file_path, ''), COALESCE(line_number, 0), COALESCE(field_name, ''), error_message
		FROM error_logs ORDER BY timestamp DESC, id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query error logs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ErrorLog, error) {
		var el models.ErrorLog
		err := row.Scan(&el.ID, &el.Timestamp, &el.Source, &el.FilePath, &el.LineNumber, &el.FieldName, &el.ErrorMessage)
		return el, err
	})
}

// notFound maps pgx.ErrNoRows onto models.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
