package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-server/logger"
	"quiz-server/models"
)

const questionColumns = `id, question_text, options, correct_answers, explanation, image_filename`

// QuestionRepo is the question bank.
type QuestionRepo struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewQuestionRepo(pool *pgxpool.Pool, baseLog *logger.Logger) *QuestionRepo {
	return &QuestionRepo{pool: pool, log: baseLog.With("repo", "QuestionRepo")}
}

func scanQuestion(row pgx.Row) (models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.QuestionText, &q.Options, &q.CorrectAnswers, &q.Explanation, &q.ImageFilename)
	return q, err
}

func collectIDs(rows pgx.Rows, err error) ([]int, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func (r *QuestionRepo) Get(ctx context.Context, id int) (models.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return models.Question{}, fmt.Errorf("get question %d: %w", id, notFound(err))
	}
	return q, nil
}

func (r *QuestionRepo) ListIDsInRange(ctx context.Context, start, end int) ([]int, error) {
	ids, err := collectIDs(r.pool.Query(ctx, `SELECT id FROM questions WHERE id BETWEEN $1 AND $2 ORDER BY id`, start, end))
	if err != nil {
		return nil, fmt.Errorf("list question ids %d-%d: %w", start, end, err)
	}
	return ids, nil
}

func (r *QuestionRepo) AllIDs(ctx context.Context) ([]int, error) {
	ids, err := collectIDs(r.pool.Query(ctx, `SELECT id FROM questions ORDER BY id`))
	if err != nil {
		return nil, fmt.Errorf("list question ids: %w", err)
	}
	return ids, nil
}

// Sample returns up to n distinct question ids in random order.
func (r *QuestionRepo) Sample(ctx context.Context, n int) ([]int, error) {
	ids, err := collectIDs(r.pool.Query(ctx, `SELECT id FROM questions ORDER BY random() LIMIT $1`, n))
	if err != nil {
		return nil, fmt.Errorf("sample %d questions: %w", n, err)
	}
	return ids, nil
}

func (r *QuestionRepo) MaxID(ctx context.Context) (int, error) {
	var maxID int
	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM questions`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("max question id: %w", err)
	}
	return maxID, nil
}

func (r *QuestionRepo) CountInRange(ctx context.Context, start, end int) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions WHERE id BETWEEN $1 AND $2`, start, end).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions %d-%d: %w", start, end, err)
	}
	return n, nil
}

func (r *QuestionRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

// List returns one page of questions, newest first, and the total count.
func (r *QuestionRepo) List(ctx context.Context, page, perPage int) ([]models.Question, int, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions ORDER BY id DESC LIMIT $1 OFFSET $2`, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}
	qs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Question, error) {
		return scanQuestion(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan questions: %w", err)
	}
	return qs, total, nil
}

// Create inserts q with a generated id and returns it.
func (r *QuestionRepo) Create(ctx context.Context, q models.Question) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	var id int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO questions (question_text, options, correct_answers, explanation, image_filename)
		VALUES ($1, $2, $3, $4, $5) RETURNING id
	`, q.QuestionText, q.Options, q.CorrectAnswers, q.Explanation, q.ImageFilename).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return id, nil
}

func (r *QuestionRepo) Update(ctx context.Context, q models.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE questions SET question_text = $2, options = $3, correct_answers = $4, explanation = $5, image_filename = $6
		WHERE id = $1
	`, q.ID, q.QuestionText, q.Options, q.CorrectAnswers, q.Explanation, q.ImageFilename)
	if err != nil {
		return fmt.Errorf("update question %d: %w", q.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update question %d: %w", q.ID, models.ErrNotFound)
	}
	return nil
}

// Delete removes a question; its answers and check marks cascade.
func (r *QuestionRepo) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete question %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// ImportQuestions writes qs in one transaction. Questions with an explicit id are
// upserted; the rest get a generated id. With deleteAll the bank is emptied first,
// which cascades to answers and check marks.
func (r *QuestionRepo) ImportQuestions(ctx context.Context, qs []models.Question, deleteAll bool) (inserted, updated int, err error) {
	for _, q := range qs {
		if err := q.Validate(); err != nil {
			return 0, 0, fmt.Errorf("question %d: %w", q.ID, err)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if deleteAll {
		if _, err := tx.Exec(ctx, `DELETE FROM questions`); err != nil {
			return 0, 0, fmt.Errorf("delete all questions: %w", err)
		}
	}

	for _, q := range qs {
		if q.ID <= 0 {
			if _, err := tx.Exec(ctx, `
				INSERT INTO questions (question_text, options, correct_answers, explanation, image_filename)
				VALUES ($1, $2, $3, $4, $5)
			`, q.QuestionText, q.Options, q.CorrectAnswers, q.Explanation, q.ImageFilename); err != nil {
				return 0, 0, fmt.Errorf("insert question: %w", err)
			}
			inserted++
			continue
		}
		// xmax = 0 only for freshly inserted rows
		var wasInsert bool
		err := tx.QueryRow(ctx, `
			INSERT INTO questions (id, question_text, options, correct_answers, explanation, image_filename)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				question_text = EXCLUDED.question_text,
				options = EXCLUDED.options,
				correct_answers = EXCLUDED.correct_answers,
				explanation = EXCLUDED.explanation,
				image_filename = EXCLUDED.image_filename
			RETURNING (xmax = 0)
		`, q.ID, q.QuestionText, q.Options, q.CorrectAnswers, q.Explanation, q.ImageFilename).Scan(&wasInsert)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert question %d: %w", q.ID, err)
		}
		if wasInsert {
			inserted++
		} else {
			updated++
		}
	}

	// explicit ids bypass the serial sequence
	if _, err := tx.Exec(ctx, `SELECT setval(pg_get_serial_sequence('questions', 'id'), COALESCE((SELECT MAX(id) FROM questions), 0) + 1, false)`); err != nil {
		return 0, 0, fmt.Errorf("reset question id sequence: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit import: %w", err)
	}
	r.log.Info("questions imported", "inserted", inserted, "updated", updated, "delete_all", deleteAll)
	return inserted, updated, nil
}

// Stats aggregates answer counts per question for the admin stats page.
func (r *QuestionRepo) Stats(ctx context.Context) ([]models.QuestionStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.id, q.question_text,
			COUNT(a.id) AS times_answered,
			COUNT(a.id) FILTER (WHERE a.is_correct) AS correct_count,
			COUNT(DISTINCT a.user_id) FILTER (WHERE NOT a.is_correct) AS incorrect_users
		FROM questions q
		LEFT JOIN answer_events a ON a.question_id = q.id
		GROUP BY q.id, q.question_text
		ORDER BY q.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query question stats: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.QuestionStats, error) {
		var s models.QuestionStats
		err := row.Scan(&s.QuestionID, &s.QuestionText, &s.TimesAnswered, &s.CorrectCount, &s.IncorrectUsers)
		return s, err
	})
}
