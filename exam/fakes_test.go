package exam

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"quiz-server/logger"
	"quiz-server/models"
)

type fakeBank struct {
	questions map[int]models.Question
}

func newFakeBank(qs ...models.Question) *fakeBank {
	b := &fakeBank{questions: map[int]models.Question{}}
	for _, q := range qs {
		b.questions[q.ID] = q
	}
	return b
}

func (b *fakeBank) Get(_ context.Context, id int) (models.Question, error) {
	q, ok := b.questions[id]
	if !ok {
		return models.Question{}, ErrNotFound
	}
	return q, nil
}

func (b *fakeBank) ListIDsInRange(_ context.Context, start, end int) ([]int, error) {
	var ids []int
	for id := range b.questions {
		if id >= start && id <= end {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (b *fakeBank) AllIDs(ctx context.Context) ([]int, error) {
	return b.ListIDsInRange(ctx, 0, int(^uint(0)>>1))
}

func (b *fakeBank) Sample(ctx context.Context, n int) ([]int, error) {
	ids, _ := b.AllIDs(ctx)
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids, nil
}

func (b *fakeBank) MaxID(_ context.Context) (int, error) {
	top := 0
	for id := range b.questions {
		if id > top {
			top = id
		}
	}
	return top, nil
}

func (b *fakeBank) CountInRange(ctx context.Context, start, end int) (int, error) {
	ids, _ := b.ListIDsInRange(ctx, start, end)
	return len(ids), nil
}

type fakeLedger struct {
	events    []models.AnswerEvent
	appendErr error
}

func (l *fakeLedger) Append(_ context.Context, ev models.AnswerEvent) error {
	if l.appendErr != nil {
		return l.appendErr
	}
	ev.ID = len(l.events) + 1
	l.events = append(l.events, ev)
	return nil
}

func (l *fakeLedger) FindIncorrect(_ context.Context, userID, questionID int) ([]models.AnswerEvent, error) {
	var out []models.AnswerEvent
	for _, ev := range l.events {
		if ev.UserID == userID && ev.QuestionID == questionID && !ev.IsCorrect {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (l *fakeLedger) DeleteIncorrect(_ context.Context, userID, questionID int) (int64, error) {
	kept := l.events[:0]
	var n int64
	for _, ev := range l.events {
		if ev.UserID == userID && ev.QuestionID == questionID && !ev.IsCorrect {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	l.events = kept
	return n, nil
}

func (l *fakeLedger) IncorrectQuestionIDs(_ context.Context, userID int) ([]int, error) {
	var ids []int
	for _, ev := range l.events {
		if ev.UserID == userID && !ev.IsCorrect {
			ids = append(ids, ev.QuestionID)
		}
	}
	return ids, nil
}

func (l *fakeLedger) count(userID, questionID int) int {
	n := 0
	for _, ev := range l.events {
		if ev.UserID == userID && ev.QuestionID == questionID {
			n++
		}
	}
	return n
}

type fakeChecks struct {
	marks map[models.CheckCategory][]int
}

func (c *fakeChecks) ListQuestionIDs(_ context.Context, _ int, category models.CheckCategory) ([]int, error) {
	return append([]int(nil), c.marks[category]...), nil
}

func (c *fakeChecks) CategoriesFor(_ context.Context, _ int, questionID int) ([]models.CheckCategory, error) {
	var out []models.CheckCategory
	for cat, ids := range c.marks {
		for _, id := range ids {
			if id == questionID {
				out = append(out, cat)
			}
		}
	}
	return out, nil
}

type fakeResults struct {
	saved []*models.ExamResult
	err   error
}

func (r *fakeResults) SaveExamResult(_ context.Context, res *models.ExamResult) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.saved = append(r.saved, res)
	return len(r.saved), nil
}

var errStoreDown = errors.New("store down")

type harness struct {
	engine  *Engine
	bank    *fakeBank
	ledger  *fakeLedger
	checks  *fakeChecks
	results *fakeResults
	clock   time.Time
}

// newHarness builds an engine with a fixed clock and an identity shuffle.
func newHarness(t *testing.T, qs ...models.Question) *harness {
	t.Helper()
	h := &harness{
		bank:    newFakeBank(qs...),
		ledger:  &fakeLedger{},
		checks:  &fakeChecks{marks: map[models.CheckCategory][]int{}},
		results: &fakeResults{},
		clock:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	cfg := Config{ExamSize: 20, ExamDuration: 30 * time.Minute, ProctorPassword: "letmein"}
	h.engine = NewEngine(h.bank, h.ledger, h.checks, h.results, cfg, logger.Nop())
	h.engine.now = func() time.Time { return h.clock }
	h.engine.shuffle = func([]int) {}
	return h
}

func single(id int, correct string) models.Question {
	return models.Question{
		ID:             id,
		QuestionText:   "question",
		Options:        []string{"A", "B", "C", "D"},
		CorrectAnswers: []string{correct},
	}
}

func multi(id int, correct ...string) models.Question {
	return models.Question{
		ID:             id,
		QuestionText:   "multi question",
		Options:        []string{"A", "B", "C", "D"},
		CorrectAnswers: correct,
	}
}

func bankOf(n int) []models.Question {
	qs := make([]models.Question, 0, n)
	for i := 1; i <= n; i++ {
		qs = append(qs, single(i, "A"))
	}
	return qs
}

func wantRedirect(t *testing.T, err error, kind error, to string) {
	t.Helper()
	re, ok := IsRedirect(err)
	if !ok {
		t.Fatalf("expected *RedirectError, got %v", err)
	}
	if !errors.Is(re, kind) {
		t.Errorf("redirect kind = %v, want %v", re.Kind, kind)
	}
	if to != "" && re.To != to {
		t.Errorf("redirect to = %q, want %q", re.To, to)
	}
}
