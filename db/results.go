package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-server/logger"
	"quiz-server/models"
)

// ResultRepo persists completed proctored exams.
type ResultRepo struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewResultRepo(pool *pgxpool.Pool, baseLog *logger.Logger) *ResultRepo {
	return &ResultRepo{pool: pool, log: baseLog.With("repo", "ResultRepo")}
}

// SaveExamResult inserts the result and its detail snapshot in one transaction.
func (r *ResultRepo) SaveExamResult(ctx context.Context, res *models.ExamResult) (int, error) {
	details, err := json.Marshal(res.Details)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal exam result details: %w", err)
	}
	var id int
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO exam_results (user_id, score, total_questions, submitted_at, details)
			VALUES ($1, $2, $3, $4, $5) RETURNING id
		`, res.UserID, res.Score, res.TotalQuestions, res.SubmittedAt, details).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert exam result: %w", err)
	}
	res.ID = id
	r.log.Info("exam result saved", "result_id", id, "user_id", res.UserID, "score", res.Score)
	return id, nil
}

// List returns results newest first without details.
func (r *ResultRepo) List(ctx context.Context, limit int) ([]models.ExamResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.user_id, u.username, e.score, e.total_questions, e.submitted_at
		FROM exam_results e JOIN users u ON u.id = e.user_id
		ORDER BY e.submitted_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ExamResult, error) {
		var res models.ExamResult
		err := row.Scan(&res.ID, &res.UserID, &res.Username, &res.Score, &res.TotalQuestions, &res.SubmittedAt)
		return res, err
	})
}

func (r *ResultRepo) Get(ctx context.Context, id int) (*models.ExamResult, error) {
	var (
		res     models.ExamResult
		details []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT e.id, e.user_id, u.username, e.score, e.total_questions, e.submitted_at, e.details
		FROM exam_results e JOIN users u ON u.id = e.user_id
		WHERE e.id = $1
	`, id).Scan(&res.ID, &res.UserID, &res.Username, &res.Score, &res.TotalQuestions, &res.SubmittedAt, &details)
	if err != nil {
		return nil, fmt.Errorf("get exam result %d: %w", id, notFound(err))
	}
	if err := json.Unmarshal(details, &res.Details); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exam result details: %w", err)
	}
	return &res, nil
}

func (r *ResultRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count exam results: %w", err)
	}
	return n, nil
}
