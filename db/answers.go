package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-server/logger"
	"quiz-server/models"
)

// AnswerRepo is the append-only answer ledger plus the history queries built on it.
type AnswerRepo struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewAnswerRepo(pool *pgxpool.Pool, baseLog *logger.Logger) *AnswerRepo {
	return &AnswerRepo{pool: pool, log: baseLog.With("repo", "AnswerRepo")}
}

func scanAnswer(row pgx.CollectableRow) (models.AnswerEvent, error) {
	var ev models.AnswerEvent
	err := row.Scan(&ev.ID, &ev.UserID, &ev.QuestionID, &ev.SelectedOptions, &ev.IsCorrect, &ev.Timestamp)
	return ev, err
}

func (r *AnswerRepo) Append(ctx context.Context, ev models.AnswerEvent) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO answer_events (user_id, question_id, selected_options, is_correct, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.UserID, ev.QuestionID, ev.SelectedOptions, ev.IsCorrect, ts)
	if err != nil {
		return fmt.Errorf("insert answer event: %w", err)
	}
	return nil
}

func (r *AnswerRepo) FindIncorrect(ctx context.Context, userID, questionID int) ([]models.AnswerEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, question_id, selected_options, is_correct, created_at
		FROM answer_events WHERE user_id = $1 AND question_id = $2 AND NOT is_correct
		ORDER BY created_at
	`, userID, questionID)
	if err != nil {
		return nil, fmt.Errorf("find incorrect answers: %w", err)
	}
	return pgx.CollectRows(rows, scanAnswer)
}

func (r *AnswerRepo) DeleteIncorrect(ctx context.Context, userID, questionID int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM answer_events WHERE user_id = $1 AND question_id = $2 AND NOT is_correct`, userID, questionID)
	if err != nil {
		return 0, fmt.Errorf("delete incorrect answers: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *AnswerRepo) IncorrectQuestionIDs(ctx context.Context, userID int) ([]int, error) {
	ids, err := collectIDs(r.pool.Query(ctx, `SELECT DISTINCT question_id FROM answer_events WHERE user_id = $1 AND NOT is_correct`, userID))
	if err != nil {
		return nil, fmt.Errorf("list incorrect question ids: %w", err)
	}
	return ids, nil
}

// LatestPerQuestion returns the user's most recent answer to each question.
func (r *AnswerRepo) LatestPerQuestion(ctx context.Context, userID int) ([]models.AnswerEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (question_id) id, user_id, question_id, selected_options, is_correct, created_at
		FROM answer_events WHERE user_id = $1
		ORDER BY question_id, created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("latest answers: %w", err)
	}
	return pgx.CollectRows(rows, scanAnswer)
}

// Progress summarises the user's whole history for the my page.
func (r *AnswerRepo) Progress(ctx context.Context, userID int) (models.UserProgress, error) {
	var p models.UserProgress
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_correct) FROM answer_events WHERE user_id = $1
	`, userID).Scan(&p.TotalAnswered, &p.CorrectAnswered)
	if err != nil {
		return p, fmt.Errorf("answer totals: %w", err)
	}
	if p.TotalAnswered > 0 {
		p.Accuracy = float64(p.CorrectAnswered) / float64(p.TotalAnswered) * 100
	}
	latest, err := r.LatestPerQuestion(ctx, userID)
	if err != nil {
		return p, err
	}
	p.Latest = latest
	return p, nil
}

// IncorrectEntries lists each incorrectly answered question once, with the
// user's most recent wrong selection, newest first.
func (r *AnswerRepo) IncorrectEntries(ctx context.Context, userID int) ([]models.IncorrectEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.id, q.question_text, q.options, q.correct_answers, q.explanation, q.image_filename,
			w.selected_options, w.created_at
		FROM (
			SELECT DISTINCT ON (question_id) question_id, selected_options, created_at
			FROM answer_events WHERE user_id = $1 AND NOT is_correct
			ORDER BY question_id, created_at DESC
		) w
		JOIN questions q ON q.id = w.question_id
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("incorrect answers: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.IncorrectEntry, error) {
		var e models.IncorrectEntry
		q := &e.Question
		err := row.Scan(&q.ID, &q.QuestionText, &q.Options, &q.CorrectAnswers, &q.Explanation, &q.ImageFilename,
			&e.UserSelected, &e.AnsweredAt)
		return e, err
	})
}

// ResetUser deletes the user's answer history and check marks in one transaction.
func (r *AnswerRepo) ResetUser(ctx context.Context, userID int) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM answer_events WHERE user_id = $1`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM check_marks WHERE user_id = $1`, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("reset progress for user %d: %w", userID, err)
	}
	r.log.Info("progress reset", "user_id", userID)
	return nil
}

// Ranking orders users by answers submitted since the given instant.
func (r *AnswerRepo) Ranking(ctx context.Context, since time.Time, limit int) ([]models.RankingEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.username, COUNT(a.id) AS answer_count
		FROM answer_events a JOIN users u ON u.id = a.user_id
		WHERE a.created_at >= $1
		GROUP BY u.id, u.username
		ORDER BY answer_count DESC, u.username
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RankingEntry, error) {
		var e models.RankingEntry
		err := row.Scan(&e.Username, &e.AnswerCount)
		return e, err
	})
}

func (r *AnswerRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM answer_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return n, nil
}
