package handlers

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"quiz-server/db"
	"quiz-server/models"
)

type memQuestions struct {
	mu   sync.Mutex
	qs   map[int]models.Question
	next int
}

func newMemQuestions(qs ...models.Question) *memQuestions {
	m := &memQuestions{qs: map[int]models.Question{}, next: 1}
	for _, q := range qs {
		m.qs[q.ID] = q
		if q.ID >= m.next {
			m.next = q.ID + 1
		}
	}
	return m
}

func (m *memQuestions) sortedIDs(keep func(int) bool) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int
	for id := range m.qs {
		if keep(id) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func (m *memQuestions) Get(_ context.Context, id int) (models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qs[id]
	if !ok {
		return models.Question{}, models.ErrNotFound
	}
	return q, nil
}

func (m *memQuestions) ListIDsInRange(_ context.Context, start, end int) ([]int, error) {
	return m.sortedIDs(func(id int) bool { return id >= start && id <= end }), nil
}

func (m *memQuestions) AllIDs(_ context.Context) ([]int, error) {
	return m.sortedIDs(func(int) bool { return true }), nil
}

func (m *memQuestions) Sample(ctx context.Context, n int) ([]int, error) {
	ids, _ := m.AllIDs(ctx)
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids, nil
}

func (m *memQuestions) MaxID(ctx context.Context) (int, error) {
	ids, _ := m.AllIDs(ctx)
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[len(ids)-1], nil
}

func (m *memQuestions) CountInRange(ctx context.Context, start, end int) (int, error) {
	ids, _ := m.ListIDsInRange(ctx, start, end)
	return len(ids), nil
}

func (m *memQuestions) Count(ctx context.Context) (int, error) {
	ids, _ := m.AllIDs(ctx)
	return len(ids), nil
}

func (m *memQuestions) List(ctx context.Context, page, perPage int) ([]models.Question, int, error) {
	ids, _ := m.AllIDs(ctx)
	slices.Reverse(ids)
	total := len(ids)
	from := min((page-1)*perPage, total)
	to := min(from+perPage, total)
	out := make([]models.Question, 0, to-from)
	for _, id := range ids[from:to] {
		q, _ := m.Get(ctx, id)
		out = append(out, q)
	}
	return out, total, nil
}

func (m *memQuestions) Create(_ context.Context, q models.Question) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = m.next
	m.next++
	m.qs[q.ID] = q
	return q.ID, nil
}

func (m *memQuestions) Update(_ context.Context, q models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.qs[q.ID]; !ok {
		return models.ErrNotFound
	}
	m.qs[q.ID] = q
	return nil
}

func (m *memQuestions) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.qs[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.qs, id)
	return nil
}

func (m *memQuestions) ImportQuestions(_ context.Context, qs []models.Question, deleteAll bool) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if deleteAll {
		m.qs = map[int]models.Question{}
	}
	inserted, updated := 0, 0
	for _, q := range qs {
		if q.ID <= 0 {
			q.ID = m.next
		}
		if _, ok := m.qs[q.ID]; ok {
			updated++
		} else {
			inserted++
		}
		m.qs[q.ID] = q
		if q.ID >= m.next {
			m.next = q.ID + 1
		}
	}
	return inserted, updated, nil
}

func (m *memQuestions) Stats(_ context.Context) ([]models.QuestionStats, error) {
	return nil, nil
}

type memAnswers struct {
	mu     sync.Mutex
	events []models.AnswerEvent
}

func (m *memAnswers) Append(_ context.Context, ev models.AnswerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = len(m.events) + 1
	m.events = append(m.events, ev)
	return nil
}

func (m *memAnswers) FindIncorrect(_ context.Context, userID, questionID int) ([]models.AnswerEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AnswerEvent
	for _, ev := range m.events {
		if ev.UserID == userID && ev.QuestionID == questionID && !ev.IsCorrect {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memAnswers) DeleteIncorrect(_ context.Context, userID, questionID int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.events[:0]
	for _, ev := range m.events {
		if ev.UserID == userID && ev.QuestionID == questionID && !ev.IsCorrect {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	m.events = kept
	return n, nil
}

func (m *memAnswers) IncorrectQuestionIDs(_ context.Context, userID int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int
	for _, ev := range m.events {
		if ev.UserID == userID && !ev.IsCorrect && !slices.Contains(ids, ev.QuestionID) {
			ids = append(ids, ev.QuestionID)
		}
	}
	return ids, nil
}

func (m *memAnswers) Progress(_ context.Context, userID int) (models.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p models.UserProgress
	for _, ev := range m.events {
		if ev.UserID != userID {
			continue
		}
		p.TotalAnswered++
		if ev.IsCorrect {
			p.CorrectAnswered++
		}
	}
	if p.TotalAnswered > 0 {
		p.Accuracy = float64(p.CorrectAnswered) * 100 / float64(p.TotalAnswered)
	}
	return p, nil
}

func (m *memAnswers) IncorrectEntries(_ context.Context, _ int) ([]models.IncorrectEntry, error) {
	return nil, nil
}

func (m *memAnswers) ResetUser(_ context.Context, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, ev := range m.events {
		if ev.UserID != userID {
			kept = append(kept, ev)
		}
	}
	m.events = kept
	return nil
}

func (m *memAnswers) Ranking(_ context.Context, _ time.Time, _ int) ([]models.RankingEntry, error) {
	return nil, nil
}

func (m *memAnswers) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events), nil
}

type checkKey struct {
	user, question int
	cat            models.CheckCategory
}

type memChecks struct {
	mu    sync.Mutex
	marks map[checkKey]bool
}

func newMemChecks() *memChecks { return &memChecks{marks: map[checkKey]bool{}} }

func (m *memChecks) Toggle(_ context.Context, userID, questionID int, cat models.CheckCategory) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := checkKey{userID, questionID, cat}
	m.marks[k] = !m.marks[k]
	return m.marks[k], nil
}

func (m *memChecks) ListQuestionIDs(_ context.Context, userID int, cat models.CheckCategory) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int
	for k, on := range m.marks {
		if on && k.user == userID && k.cat == cat {
			ids = append(ids, k.question)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (m *memChecks) CategoriesFor(_ context.Context, userID, questionID int) ([]models.CheckCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cats []models.CheckCategory
	for _, cat := range models.CheckCategories {
		if m.marks[checkKey{userID, questionID, cat}] {
			cats = append(cats, cat)
		}
	}
	return cats, nil
}

func (m *memChecks) Count(ctx context.Context, userID int, cat models.CheckCategory) (int, error) {
	ids, _ := m.ListQuestionIDs(ctx, userID, cat)
	return len(ids), nil
}

func (m *memChecks) ListDetailed(_ context.Context, _ int, _ models.CheckCategory) ([]models.CheckedEntry, error) {
	return nil, nil
}

type memResults struct {
	mu      sync.Mutex
	results []models.ExamResult
}

func (m *memResults) SaveExamResult(_ context.Context, res *models.ExamResult) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res.ID = len(m.results) + 1
	m.results = append(m.results, *res)
	return res.ID, nil
}

func (m *memResults) List(_ context.Context, _ int) ([]models.ExamResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.results), nil
}

func (m *memResults) Get(_ context.Context, id int) (*models.ExamResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memResults) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results), nil
}

type memUsers struct {
	mu    sync.Mutex
	users []*models.User
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return db.ErrDuplicateUser
		}
	}
	u.ID = len(m.users) + 1
	m.users = append(m.users, u)
	return nil
}

func (m *memUsers) Update(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, existing := range m.users {
		if existing.ID == u.ID {
			idx = i
			continue
		}
		if existing.Username == u.Username || existing.Email == u.Email {
			return db.ErrDuplicateUser
		}
	}
	if idx < 0 {
		return models.ErrNotFound
	}
	cp := *u
	m.users[idx] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memUsers) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

type memAudit struct {
	mu     sync.Mutex
	events []models.AdminEvent
	errors []models.ErrorLog
}

func (m *memAudit) LogError(_ context.Context, source, filePath string, lineNumber int, fieldName, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, models.ErrorLog{
		Source: source, FilePath: filePath, LineNumber: lineNumber, FieldName: fieldName, ErrorMessage: errMsg,
	})
}

func (m *memAudit) LogAdminEvent(_ context.Context, actor, action, target, notes string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, models.AdminEvent{Actor: actor, Action: action, Target: target, Notes: notes})
}

func (m *memAudit) RecentAdminEvents(_ context.Context, limit int) ([]models.AdminEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.events)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memAudit) RecentErrors(_ context.Context, limit int) ([]models.ErrorLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.errors)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
