package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-server/logger"
	"quiz-server/models"
)

// CheckRepo stores per-user check marks.
type CheckRepo struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewCheckRepo(pool *pgxpool.Pool, baseLog *logger.Logger) *CheckRepo {
	return &CheckRepo{pool: pool, log: baseLog.With("repo", "CheckRepo")}
}

// Toggle flips the mark and returns its new state. The first toggle creates a
// checked mark.
func (r *CheckRepo) Toggle(ctx context.Context, userID, questionID int, category models.CheckCategory) (bool, error) {
	if !category.Valid() {
		return false, fmt.Errorf("check category %q: %w", category, models.ErrNotFound)
	}
	var checked bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO check_marks (user_id, question_id, category, is_checked, updated_at)
		VALUES ($1, $2, $3, TRUE, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, question_id, category) DO UPDATE SET
			is_checked = NOT check_marks.is_checked,
			updated_at = CURRENT_TIMESTAMP
		RETURNING is_checked
	`, userID, questionID, string(category)).Scan(&checked)
	if err != nil {
		return false, fmt.Errorf("toggle check mark: %w", err)
	}
	return checked, nil
}

func (r *CheckRepo) ListQuestionIDs(ctx context.Context, userID int, category models.CheckCategory) ([]int, error) {
	ids, err := collectIDs(r.pool.Query(ctx, `
		SELECT question_id FROM check_marks WHERE user_id = $1 AND category = $2 AND is_checked
	`, userID, string(category)))
	if err != nil {
		return nil, fmt.Errorf("list %s check marks: %w", category, err)
	}
	return ids, nil
}

func (r *CheckRepo) CategoriesFor(ctx context.Context, userID, questionID int) ([]models.CheckCategory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT category FROM check_marks WHERE user_id = $1 AND question_id = $2 AND is_checked
	`, userID, questionID)
	if err != nil {
		return nil, fmt.Errorf("check marks for question %d: %w", questionID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CheckCategory, error) {
		var c string
		err := row.Scan(&c)
		return models.CheckCategory(c), err
	})
}

func (r *CheckRepo) Count(ctx context.Context, userID int, category models.CheckCategory) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM check_marks WHERE user_id = $1 AND category = $2 AND is_checked
	`, userID, string(category)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s check marks: %w", category, err)
	}
	return n, nil
}

// ListDetailed returns the checked questions of one category, most recently checked first.
func (r *CheckRepo) ListDetailed(ctx context.Context, userID int, category models.CheckCategory) ([]models.CheckedEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.id, q.question_text, q.options, q.correct_answers, q.explanation, q.image_filename, c.updated_at
		FROM check_marks c JOIN questions q ON q.id = c.question_id
		WHERE c.user_id = $1 AND c.category = $2 AND c.is_checked
		ORDER BY c.updated_at DESC
	`, userID, string(category))
	if err != nil {
		return nil, fmt.Errorf("list %s checked questions: %w", category, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CheckedEntry, error) {
		e := models.CheckedEntry{Category: category}
		q := &e.Question
		err := row.Scan(&q.ID, &q.QuestionText, &q.Options, &q.CorrectAnswers, &q.Explanation, &q.ImageFilename, &e.CheckedAt)
		return e, err
	})
}
