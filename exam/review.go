package exam

import (
	"context"
	"fmt"

	"quiz-server/models"
	"quiz-server/session"
)

// DeriveIncorrectSet returns the shuffled, distinct ids of questions the user has
// answered incorrectly at least once.
func (e *Engine) DeriveIncorrectSet(ctx context.Context, userID int) ([]int, error) {
	ids, err := e.ledger.IncorrectQuestionIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incorrect questions: %w", err)
	}
	ids = dedupe(ids)
	e.shuffle(ids)
	return ids, nil
}

// DeriveCheckedSet returns the shuffled, distinct ids the user checked in category.
func (e *Engine) DeriveCheckedSet(ctx context.Context, userID int, category models.CheckCategory) ([]int, error) {
	ids, err := e.checks.ListQuestionIDs(ctx, userID, category)
	if err != nil {
		return nil, fmt.Errorf("list %s check marks: %w", category, err)
	}
	ids = dedupe(ids)
	e.shuffle(ids)
	return ids, nil
}

// StartReviewIncorrect begins a review over every incorrectly answered question.
func (e *Engine) StartReviewIncorrect(ctx context.Context, rec *session.Record, userID int) (string, error) {
	ids, err := e.DeriveIncorrectSet(ctx, userID)
	if err != nil {
		return "", err
	}
	return e.startSequential(rec, session.ModeReviewIncorrect, "", ids, PathIncorrect,
		"There are no incorrect answers to review.")
}

// StartReviewChecked begins a review over the questions checked in category.
func (e *Engine) StartReviewChecked(ctx context.Context, rec *session.Record, userID int, category models.CheckCategory) (string, error) {
	if !category.Valid() {
		return "", fmt.Errorf("check category %q: %w", category, ErrNotFound)
	}
	ids, err := e.DeriveCheckedSet(ctx, userID, category)
	if err != nil {
		return "", err
	}
	return e.startSequential(rec, session.ModeReviewChecked, category, ids, CheckedPath(category),
		fmt.Sprintf("No questions are marked %q.", category.DisplayName()))
}
