// Package session holds the per-browser state of an in-progress quiz or exam.
//
// A Record is loaded once at the start of a request, mutated by the engine and
// flushed once at the end. Concurrent requests for the same session id are
// last-write-wins.
package session

import (
	"context"
	"errors"
	"time"

	"quiz-server/models"
)

// Mode tags what kind of session is in progress.
type Mode string

const (
	ModePractice        Mode = "practice"
	ModeReviewIncorrect Mode = "review_incorrect"
	ModeReviewChecked   Mode = "review_checked"
	ModeExam            Mode = "exam"
)

// IsReview reports whether m is one of the review variants of practice.
func (m Mode) IsReview() bool {
	return m == ModeReviewIncorrect || m == ModeReviewChecked
}

// QuizState is the in-progress state. It is nil when no quiz or exam is running.
type QuizState struct {
	Mode     Mode                 `json:"mode"`
	Category models.CheckCategory `json:"category,omitempty"` // review_checked only
	Order    []int                `json:"order"`
	Cursor   int                  `json:"cursor"`

	// practice / review counters
	CorrectCount  int   `json:"correct_count"`
	AnsweredCount int   `json:"answered_count"`
	AnsweredIDs   []int `json:"answered_ids,omitempty"`

	// exam only
	Answers   map[int][]string `json:"answers,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Deadline  *time.Time       `json:"deadline,omitempty"`
	Proctored bool             `json:"proctored,omitempty"`
}

// CurrentQuestionID returns the id under the cursor.
func (s *QuizState) CurrentQuestionID() (int, bool) {
	if s == nil || s.Cursor < 0 || s.Cursor >= len(s.Order) {
		return 0, false
	}
	return s.Order[s.Cursor], true
}

// HasAnswered reports whether id was already counted in this session.
func (s *QuizState) HasAnswered(id int) bool {
	for _, a := range s.AnsweredIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Expired reports whether a timed exam is past its deadline at now.
func (s *QuizState) Expired(now time.Time) bool {
	return s != nil && s.Deadline != nil && now.After(*s.Deadline)
}

// Record is everything stored under one session id.
type Record struct {
	// OwnerID is the user the quiz state belongs to; 0 before anyone signs in.
	OwnerID    int                    `json:"owner_id,omitempty"`
	Quiz       *QuizState             `json:"quiz,omitempty"`
	Notices    []models.Notice        `json:"notices,omitempty"`
	LastAnswer *models.AnswerFeedback `json:"last_answer,omitempty"`
	Completion *models.Completion     `json:"completion,omitempty"`
	LastResult *models.ExamReport     `json:"last_result,omitempty"`
}

// Flash queues a notice for the next rendered page.
func (r *Record) Flash(level models.NoticeLevel, msg string) {
	r.Notices = append(r.Notices, models.Notice{Level: level, Message: msg})
}

// PopNotices returns and clears the queued notices.
func (r *Record) PopNotices() []models.Notice {
	n := r.Notices
	r.Notices = nil
	return n
}

// PopLastAnswer returns and clears the previous answer feedback.
func (r *Record) PopLastAnswer() *models.AnswerFeedback {
	a := r.LastAnswer
	r.LastAnswer = nil
	return a
}

// PopCompletion returns and clears the practice completion summary.
func (r *Record) PopCompletion() *models.Completion {
	c := r.Completion
	r.Completion = nil
	return c
}

// PopLastResult returns and clears the one-time exam report.
func (r *Record) PopLastResult() *models.ExamReport {
	res := r.LastResult
	r.LastResult = nil
	return res
}

// ClearQuiz drops any in-progress quiz or exam along with its per-question feedback.
func (r *Record) ClearQuiz() {
	r.Quiz = nil
	r.LastAnswer = nil
}

// ResetUserState drops everything tied to the signed-in user: the running quiz or
// exam and the one-time summaries. Queued notices are kept.
func (r *Record) ResetUserState() {
	r.ClearQuiz()
	r.Completion = nil
	r.LastResult = nil
}

// BindOwner ties the record to userID, discarding any user state that was not
// created by userID. A zero userID leaves the record untouched.
func (r *Record) BindOwner(userID int) {
	if userID == 0 || r.OwnerID == userID {
		return
	}
	r.ResetUserState()
	r.OwnerID = userID
}

var ErrInvalidID = errors.New("invalid session id")

// Store persists Records by session id.
type Store interface {
	// Load returns an empty Record when nothing is stored under id.
	Load(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, id string, rec *Record) error
	Delete(ctx context.Context, id string) error
}
