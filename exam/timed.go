package exam

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"quiz-server/models"
	"quiz-server/session"
)

// ExamOptions selects the exam variant at start.
type ExamOptions struct {
	Size      int // 0 uses the configured size
	Proctored bool
	Password  string
}

// NavAction is what the user asked for when saving an exam answer.
type NavAction string

const (
	NavStay   NavAction = "stay"
	NavNext   NavAction = "next"
	NavPrev   NavAction = "prev"
	NavGoto   NavAction = "goto"
	NavSubmit NavAction = "submit"
)

// ExamNav pairs an action with its target index (NavGoto only).
type ExamNav struct {
	Action NavAction
	Target int
}

const timeUpNotice = "Time's up. Your exam was submitted automatically."

// ActiveExam reports whether rec holds a running exam.
func ActiveExam(rec *session.Record) bool {
	return rec.Quiz != nil && rec.Quiz.Mode == session.ModeExam
}

// StartExam samples up to the requested number of questions and starts a timed exam.
// A proctored exam requires the shared exam password.
func (e *Engine) StartExam(ctx context.Context, rec *session.Record, opts ExamOptions) (string, error) {
	if opts.Proctored && !e.checkPassword(opts.Password) {
		return "", fail(rec, models.NoticeDanger, "Incorrect exam password.", ErrBadExamPassword, PathExam)
	}
	size := opts.Size
	if size <= 0 {
		size = e.cfg.ExamSize
	}

	ids, err := e.bank.Sample(ctx, size)
	if err != nil {
		return "", fmt.Errorf("sample exam questions: %w", err)
	}
	order := dedupe(ids)
	if len(order) == 0 {
		return "", fail(rec, models.NoticeWarning, "The question bank is empty. An exam cannot be started.", ErrEmptySelection, PathExam)
	}
	if len(order) < size {
		rec.Flash(models.NoticeWarning, fmt.Sprintf("Only %d questions are available, so the exam uses all of them.", len(order)))
	}
	e.shuffle(order)

	now := e.now()
	deadline := now.Add(e.cfg.ExamDuration)
	rec.ClearQuiz()
	rec.Completion = nil
	rec.LastResult = nil
	rec.Quiz = &session.QuizState{
		Mode:      session.ModeExam,
		Order:     order,
		Answers:   map[int][]string{},
		StartedAt: now,
		Deadline:  &deadline,
		Proctored: opts.Proctored,
	}
	e.log.Info("exam started", "questions", len(order), "proctored", opts.Proctored, "deadline", deadline)
	return ExamQuestionPath(0), nil
}

func (e *Engine) checkPassword(given string) bool {
	if e.cfg.ProctorPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(e.cfg.ProctorPassword)) == 1
}

func examState(rec *session.Record) (*session.QuizState, error) {
	if !ActiveExam(rec) {
		return nil, fail(rec, models.NoticeInfo, "No exam in progress.", ErrStaleSession, PathExam)
	}
	return rec.Quiz, nil
}

// clampIndex maps an out-of-range index to the first question.
func clampIndex(st *session.QuizState, index int) int {
	if index < 0 || index >= len(st.Order) {
		return 0
	}
	return index
}

// expire scores an exam whose deadline has passed and returns where to go next.
func (e *Engine) expire(ctx context.Context, rec *session.Record, userID int) (string, error) {
	e.log.Info("exam deadline passed, auto-submitting", "user_id", userID)
	to, err := e.SubmitExam(ctx, rec, userID)
	if err != nil {
		return "", err
	}
	rec.Flash(models.NoticeWarning, timeUpNotice)
	return "", &RedirectError{Kind: ErrTimeUp, To: to}
}

// ExamView builds the page for question index of the running exam and moves the
// cursor there.
func (e *Engine) ExamView(ctx context.Context, rec *session.Record, userID, index int) (*models.ExamQuestionView, error) {
	st, err := examState(rec)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if st.Expired(now) {
		_, err := e.expire(ctx, rec, userID)
		return nil, err
	}

	index = clampIndex(st, index)
	st.Cursor = index
	id := st.Order[index]
	q, err := e.bank.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load exam question %d: %w", id, err)
	}

	nav := make([]models.NavItem, len(st.Order))
	answered := 0
	for i, qid := range st.Order {
		_, ok := st.Answers[qid]
		if ok {
			answered++
		}
		nav[i] = models.NavItem{Index: i, Answered: ok, Current: i == index}
	}

	remaining := 0
	if st.Deadline != nil {
		remaining = int(st.Deadline.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
	}

	return &models.ExamQuestionView{
		Index:            index,
		Total:            len(st.Order),
		Question:         q,
		MultiSelect:      q.IsMultiSelect(),
		Selected:         st.Answers[id],
		Navigation:       nav,
		AnsweredCount:    answered,
		RemainingSeconds: remaining,
		Proctored:        st.Proctored,
	}, nil
}

// ExamAnswer buffers the answer for question index, replacing any earlier one, then
// applies nav. An empty selection clears the buffered answer.
func (e *Engine) ExamAnswer(ctx context.Context, rec *session.Record, userID, index int, selected []string, nav ExamNav) (string, error) {
	st, err := examState(rec)
	if err != nil {
		return "", err
	}
	if st.Expired(e.now()) {
		return e.expire(ctx, rec, userID)
	}

	index = clampIndex(st, index)
	id := st.Order[index]
	if st.Answers == nil {
		st.Answers = map[int][]string{}
	}
	if len(selected) == 0 {
		delete(st.Answers, id)
	} else {
		st.Answers[id] = selected
	}

	last := len(st.Order) - 1
	switch nav.Action {
	case NavSubmit:
		return e.SubmitExam(ctx, rec, userID)
	case NavNext:
		index = min(index+1, last)
	case NavPrev:
		index = max(index-1, 0)
	case NavGoto:
		index = clampIndex(st, nav.Target)
	}
	st.Cursor = index
	return ExamQuestionPath(index), nil
}

// SubmitExam scores every question in the exam. Proctored results are persisted
// before the session is cleared; when that fails the exam stays open. Without a
// running exam it redirects to the exam landing page.
func (e *Engine) SubmitExam(ctx context.Context, rec *session.Record, userID int) (string, error) {
	if !ActiveExam(rec) {
		rec.Flash(models.NoticeInfo, "No exam in progress.")
		return PathExam, nil
	}
	st := rec.Quiz

	report, err := e.score(ctx, st)
	if err != nil {
		return "", err
	}

	if st.Proctored {
		res := &models.ExamResult{
			UserID:         userID,
			Score:          report.Score,
			TotalQuestions: report.TotalQuestions,
			SubmittedAt:    e.now(),
			Details:        report.Details,
		}
		id, err := e.results.SaveExamResult(ctx, res)
		if err != nil {
			e.log.Error("save exam result failed", "user_id", userID, "error", err)
			return "", fail(rec, models.NoticeDanger, "Your exam result could not be saved. Please submit again.", ErrPersist, ExamQuestionPath(st.Cursor))
		}
		report.ResultID = id
	}

	e.log.Info("exam submitted", "user_id", userID, "score", report.Score, "total", report.TotalQuestions, "proctored", st.Proctored)
	rec.LastResult = report
	rec.ClearQuiz()
	return PathExamResult, nil
}

// score grades the buffered answers. A question missing from the bank is scored as
// incorrect with a placeholder text.
func (e *Engine) score(ctx context.Context, st *session.QuizState) (*models.ExamReport, error) {
	report := &models.ExamReport{
		TotalQuestions: len(st.Order),
		Proctored:      st.Proctored,
		Details:        make([]models.ExamResultDetail, 0, len(st.Order)),
	}
	for _, id := range st.Order {
		answer := st.Answers[id]
		if len(answer) > 0 {
			report.AnsweredCount++
		}
		q, err := e.bank.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			report.Details = append(report.Details, models.ExamResultDetail{
				QuestionID:   id,
				QuestionText: "(question removed)",
				UserAnswer:   answer,
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load exam question %d: %w", id, err)
		}
		correct := IsCorrect(q, answer)
		if correct {
			report.Score++
		}
		report.Details = append(report.Details, models.ExamResultDetail{
			QuestionID:     id,
			QuestionText:   q.QuestionText,
			UserAnswer:     answer,
			CorrectAnswers: q.CorrectAnswers,
			Explanation:    q.ExplanationText(),
			IsCorrect:      correct,
		})
	}
	return report, nil
}

// LastResult returns the one-time report of the exam just submitted.
func (e *Engine) LastResult(rec *session.Record) (*models.ExamReport, error) {
	res := rec.PopLastResult()
	if res == nil {
		return nil, &RedirectError{Kind: ErrStaleSession, To: PathExam}
	}
	return res, nil
}
