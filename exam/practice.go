package exam

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"quiz-server/models"
	"quiz-server/session"
)

// StartPractice begins a practice session over ids. Any in-flight quiz or exam is
// abandoned.
func (e *Engine) StartPractice(ctx context.Context, rec *session.Record, ids []int) (string, error) {
	return e.startSequential(rec, session.ModePractice, "", ids, PathHome,
		"No questions found in the selected ranges. Please choose again.")
}

// StartRanges resolves range keys and starts practice over the union.
func (e *Engine) StartRanges(ctx context.Context, rec *session.Record, keys []string) (string, error) {
	ids, err := e.ResolveRanges(ctx, keys)
	if err != nil {
		return "", err
	}
	return e.StartPractice(ctx, rec, ids)
}

// RetryQuestion starts a one-question practice session.
func (e *Engine) RetryQuestion(ctx context.Context, rec *session.Record, questionID int) (string, error) {
	if _, err := e.bank.Get(ctx, questionID); err != nil {
		return "", fmt.Errorf("retry question %d: %w", questionID, err)
	}
	return e.StartPractice(ctx, rec, []int{questionID})
}

func (e *Engine) startSequential(rec *session.Record, mode session.Mode, category models.CheckCategory, ids []int, emptyTo, emptyMsg string) (string, error) {
	order := dedupe(ids)
	if len(order) == 0 {
		return "", fail(rec, models.NoticeWarning, emptyMsg, ErrEmptySelection, emptyTo)
	}
	e.shuffle(order)

	rec.ClearQuiz()
	rec.Completion = nil
	rec.Quiz = &session.QuizState{
		Mode:      mode,
		Category:  category,
		Order:     order,
		StartedAt: e.now(),
	}
	e.log.Debug("session started", "mode", mode, "questions", len(order))
	return QuestionPath(order[0]), nil
}

// sequentialState returns the practice/review state or a redirect when none is active.
func sequentialState(rec *session.Record) (*session.QuizState, error) {
	st := rec.Quiz
	if st == nil {
		return nil, fail(rec, models.NoticeInfo, "No quiz in progress. Please select questions to start.", ErrStaleSession, PathHome)
	}
	if st.Mode == session.ModeExam {
		return nil, &RedirectError{Kind: ErrStaleSession, To: ExamQuestionPath(st.Cursor)}
	}
	return st, nil
}

// PracticeView builds the page for the question under the cursor. Requests for any
// other question are redirected to the current one.
func (e *Engine) PracticeView(ctx context.Context, rec *session.Record, userID, questionID int) (*models.QuestionView, error) {
	st, err := sequentialState(rec)
	if err != nil {
		return nil, err
	}
	current, ok := st.CurrentQuestionID()
	if !ok {
		rec.ClearQuiz()
		return nil, fail(rec, models.NoticeInfo, "No quiz in progress. Please select questions to start.", ErrStaleSession, PathHome)
	}
	if questionID != current {
		return nil, &RedirectError{Kind: ErrStaleSession, To: QuestionPath(current)}
	}

	q, err := e.bank.Get(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("load question %d: %w", current, err)
	}
	checked := make(map[models.CheckCategory]bool, len(models.CheckCategories))
	cats, err := e.checks.CategoriesFor(ctx, userID, current)
	if err != nil {
		return nil, fmt.Errorf("load check marks for question %d: %w", current, err)
	}
	for _, c := range cats {
		checked[c] = true
	}

	view := &models.QuestionView{
		Question:    q,
		MultiSelect: q.IsMultiSelect(),
		Mode:        string(st.Mode),
		Progress: models.Progress{
			Position:      st.Cursor + 1,
			Total:         len(st.Order),
			CorrectCount:  st.CorrectCount,
			AnsweredCount: st.AnsweredCount,
			Accuracy:      accuracy(st.CorrectCount, st.AnsweredCount),
		},
		ShowProgress: st.Mode == session.ModePractice,
		Checked:      checked,
		HasNext:      st.Cursor+1 < len(st.Order),
	}
	if rec.LastAnswer != nil && rec.LastAnswer.QuestionID == current {
		view.LastAnswer = rec.LastAnswer
	}
	return view, nil
}

// SubmitAnswer scores one practice or review answer, appends it to the ledger and
// updates the session counters the first time the question is answered.
func (e *Engine) SubmitAnswer(ctx context.Context, rec *session.Record, userID, questionID int, selected []string) (string, error) {
	st, err := sequentialState(rec)
	if err != nil {
		return "", err
	}
	if !slices.Contains(st.Order, questionID) {
		current, _ := st.CurrentQuestionID()
		return "", &RedirectError{Kind: ErrStaleSession, To: QuestionPath(current)}
	}
	if len(selected) == 0 {
		return "", fail(rec, models.NoticeWarning, "Please select at least one option.", ErrEmptySelection, QuestionPath(questionID))
	}

	q, err := e.bank.Get(ctx, questionID)
	if err != nil {
		return "", fmt.Errorf("load question %d: %w", questionID, err)
	}
	correct := IsCorrect(q, selected)

	ev := models.AnswerEvent{
		UserID:          userID,
		QuestionID:      questionID,
		SelectedOptions: selected,
		IsCorrect:       correct,
		Timestamp:       e.now(),
	}
	if err := e.ledger.Append(ctx, ev); err != nil {
		e.log.Error("append answer failed", "user_id", userID, "question_id", questionID, "error", err)
		return "", fail(rec, models.NoticeDanger, "Your answer could not be saved. Please try again.", ErrPersist, QuestionPath(questionID))
	}

	if !st.HasAnswered(questionID) {
		st.AnsweredIDs = append(st.AnsweredIDs, questionID)
		st.AnsweredCount++
		if correct {
			st.CorrectCount++
		}
	}

	if st.Mode == session.ModeReviewIncorrect && correct {
		if err := e.graduate(ctx, rec, userID, questionID); err != nil {
			return "", err
		}
	}

	rec.LastAnswer = &models.AnswerFeedback{
		QuestionID:     questionID,
		IsCorrect:      correct,
		Selected:       selected,
		CorrectAnswers: q.CorrectAnswers,
		Explanation:    q.ExplanationText(),
	}
	return QuestionPath(questionID), nil
}

// graduate removes the user's earlier incorrect answers for a question answered
// correctly during incorrect-answer review.
func (e *Engine) graduate(ctx context.Context, rec *session.Record, userID, questionID int) error {
	prior, err := e.ledger.FindIncorrect(ctx, userID, questionID)
	if err != nil {
		return fmt.Errorf("find incorrect answers: %w", err)
	}
	if len(prior) == 0 {
		return nil
	}
	n, err := e.ledger.DeleteIncorrect(ctx, userID, questionID)
	if err != nil {
		e.log.Error("delete incorrect answers failed", "user_id", userID, "question_id", questionID, "error", err)
		return fail(rec, models.NoticeDanger, "Your review progress could not be saved.", ErrPersist, QuestionPath(questionID))
	}
	e.log.Debug("question graduated from incorrect pool", "user_id", userID, "question_id", questionID, "deleted", n)
	rec.Flash(models.NoticeSuccess, "Correct! This question was removed from your incorrect answers.")
	return nil
}

// Next advances to the following question, or finishes the session when the
// cursor is on the last one.
func (e *Engine) Next(ctx context.Context, rec *session.Record) (string, error) {
	st, err := sequentialState(rec)
	if err != nil {
		return "", err
	}
	rec.LastAnswer = nil
	if st.Cursor+1 < len(st.Order) {
		st.Cursor++
		return QuestionPath(st.Order[st.Cursor]), nil
	}

	completion := &models.Completion{
		CorrectCount:   st.CorrectCount,
		AnsweredCount:  st.AnsweredCount,
		TotalQuestions: len(st.Order),
		Accuracy:       accuracy(st.CorrectCount, st.AnsweredCount),
	}
	mode, category := st.Mode, st.Category
	rec.ClearQuiz()

	switch mode {
	case session.ModeReviewIncorrect:
		rec.Flash(models.NoticeSuccess, fmt.Sprintf("Review finished: %d of %d correct.", completion.CorrectCount, completion.TotalQuestions))
		return PathIncorrect, nil
	case session.ModeReviewChecked:
		rec.Flash(models.NoticeSuccess, fmt.Sprintf("Review finished: %d of %d correct.", completion.CorrectCount, completion.TotalQuestions))
		return CheckedPath(category), nil
	default:
		rec.Completion = completion
		return PathComplete, nil
	}
}

// Completion returns the one-time practice summary.
func (e *Engine) Completion(rec *session.Record) (*models.Completion, error) {
	c := rec.PopCompletion()
	if c == nil {
		return nil, &RedirectError{Kind: ErrStaleSession, To: PathHome}
	}
	return c, nil
}

// IsRedirect unwraps a *RedirectError from err.
func IsRedirect(err error) (*RedirectError, bool) {
	var re *RedirectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
