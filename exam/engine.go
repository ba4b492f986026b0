// Package exam runs quiz and exam sessions: practice over question-id ranges,
// review of incorrect or checked questions, and timed exams with a revisable
// answer buffer and deferred scoring.
//
// Every operation takes the caller's session.Record, mutates it in place and
// returns the path the browser should be sent to next. Recoverable failures are
// returned as *RedirectError after a notice has been flashed into the record.
package exam

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"quiz-server/logger"
	"quiz-server/models"
	"quiz-server/session"
)

var (
	ErrEmptySelection  = errors.New("empty selection")
	ErrInvalidRangeKey = errors.New("invalid range key")
	ErrNotFound        = models.ErrNotFound
	ErrStaleSession    = errors.New("no active session")
	ErrBadExamPassword = errors.New("incorrect exam password")
	ErrPersist         = errors.New("failed to persist")
	ErrTimeUp          = errors.New("exam time limit exceeded")
)

// RedirectError is a recoverable failure. The handler should redirect to To;
// the user-facing notice has already been queued on the session record.
type RedirectError struct {
	Kind error
	To   string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%v (redirect to %s)", e.Kind, e.To)
}

func (e *RedirectError) Unwrap() error { return e.Kind }

// Redirect targets handed back to the handlers.
const (
	PathHome       = "/"
	PathComplete   = "/quiz/complete"
	PathIncorrect  = "/review/incorrect"
	PathExam       = "/exam"
	PathExamResult = "/exam/result"
)

func QuestionPath(id int) string                       { return fmt.Sprintf("/question/%d", id) }
func ExamQuestionPath(index int) string                { return fmt.Sprintf("/exam/question/%d", index) }
func CheckedPath(category models.CheckCategory) string { return fmt.Sprintf("/checked/%s", category) }

// QuestionBank is the read side of the question store.
type QuestionBank interface {
	Get(ctx context.Context, id int) (models.Question, error)
	ListIDsInRange(ctx context.Context, start, end int) ([]int, error)
	AllIDs(ctx context.Context) ([]int, error)
	Sample(ctx context.Context, n int) ([]int, error)
}

// AnswerLedger is the append-only answer history.
type AnswerLedger interface {
	Append(ctx context.Context, ev models.AnswerEvent) error
	FindIncorrect(ctx context.Context, userID, questionID int) ([]models.AnswerEvent, error)
	DeleteIncorrect(ctx context.Context, userID, questionID int) (int64, error)
	IncorrectQuestionIDs(ctx context.Context, userID int) ([]int, error)
}

// CheckMarks is the read side of the per-user check-mark store.
type CheckMarks interface {
	ListQuestionIDs(ctx context.Context, userID int, category models.CheckCategory) ([]int, error)
	CategoriesFor(ctx context.Context, userID, questionID int) ([]models.CheckCategory, error)
}

// ResultPersister stores completed proctored exams.
type ResultPersister interface {
	SaveExamResult(ctx context.Context, res *models.ExamResult) (int, error)
}

type Config struct {
	ExamSize        int
	ExamDuration    time.Duration
	ProctorPassword string
}

// Engine drives every session transition. It holds no per-session state and is
// safe for concurrent use.
type Engine struct {
	bank    QuestionBank
	ledger  AnswerLedger
	checks  CheckMarks
	results ResultPersister
	cfg     Config
	log     *logger.Logger

	now     func() time.Time
	shuffle func([]int)
}

func NewEngine(bank QuestionBank, ledger AnswerLedger, checks CheckMarks, results ResultPersister, cfg Config, baseLog *logger.Logger) *Engine {
	if cfg.ExamSize <= 0 {
		cfg.ExamSize = 20
	}
	if cfg.ExamDuration <= 0 {
		cfg.ExamDuration = 30 * time.Minute
	}
	return &Engine{
		bank:    bank,
		ledger:  ledger,
		checks:  checks,
		results: results,
		cfg:     cfg,
		log:     baseLog.With("component", "exam.Engine"),
		now:     time.Now,
		shuffle: shuffleIDs,
	}
}

func shuffleIDs(ids []int) {
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

// fail flashes a notice and builds the matching RedirectError.
func fail(rec *session.Record, level models.NoticeLevel, msg string, kind error, to string) error {
	if msg != "" {
		rec.Flash(level, msg)
	}
	return &RedirectError{Kind: kind, To: to}
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
