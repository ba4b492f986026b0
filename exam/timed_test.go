package exam

import (
	"context"
	"slices"
	"testing"
	"time"

	"quiz-server/models"
	"quiz-server/session"
)

func startExam(t *testing.T, h *harness, rec *session.Record, opts ExamOptions) {
	t.Helper()
	if _, err := h.engine.StartExam(context.Background(), rec, opts); err != nil {
		t.Fatalf("StartExam: %v", err)
	}
}

func TestStartExamOnSmallBankWarns(t *testing.T) {
	h := newHarness(t, bankOf(5)...)
	rec := &session.Record{}
	to, err := h.engine.StartExam(context.Background(), rec, ExamOptions{Size: 20})
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	if to != ExamQuestionPath(0) {
		t.Errorf("redirect = %q", to)
	}
	if len(rec.Quiz.Order) != 5 {
		t.Errorf("order length = %d, want 5", len(rec.Quiz.Order))
	}
	notices := rec.PopNotices()
	if len(notices) != 1 || notices[0].Level != models.NoticeWarning {
		t.Errorf("expected a warning, got %+v", notices)
	}
	want := h.clock.Add(30 * time.Minute)
	if rec.Quiz.Deadline == nil || !rec.Quiz.Deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", rec.Quiz.Deadline, want)
	}
	if rec.Quiz.Answers == nil || len(rec.Quiz.Answers) != 0 {
		t.Errorf("answers should start empty, got %v", rec.Quiz.Answers)
	}
}

func TestStartExamEmptyBank(t *testing.T) {
	h := newHarness(t)
	rec := &session.Record{}
	_, err := h.engine.StartExam(context.Background(), rec, ExamOptions{})
	wantRedirect(t, err, ErrEmptySelection, PathExam)
	if rec.Quiz != nil {
		t.Error("no session should be created")
	}
}

func TestStartProctoredExamChecksPassword(t *testing.T) {
	h := newHarness(t, bankOf(3)...)
	rec := &session.Record{}
	_, err := h.engine.StartExam(context.Background(), rec, ExamOptions{Proctored: true, Password: "wrong"})
	wantRedirect(t, err, ErrBadExamPassword, PathExam)
	if rec.Quiz != nil {
		t.Error("bad password must not create a session")
	}

	startExam(t, h, rec, ExamOptions{Size: 3, Proctored: true, Password: "letmein"})
	if !rec.Quiz.Proctored {
		t.Error("session should be proctored")
	}
}

func TestExamAnswerLastWriteWinsWithoutLedgerWrites(t *testing.T) {
	h := newHarness(t, bankOf(3)...)
	ctx := context.Background()
	rec := &session.Record{}
	startExam(t, h, rec, ExamOptions{Size: 3})

	to, err := h.engine.ExamAnswer(ctx, rec, 7, 0, []string{"B"}, ExamNav{Action: NavNext})
	if err != nil || to != ExamQuestionPath(1) {
		t.Fatalf("ExamAnswer = %q, %v", to, err)
	}
	to, err = h.engine.ExamAnswer(ctx, rec, 7, 1, []string{"A"}, ExamNav{Action: NavGoto, Target: 0})
	if err != nil || to != ExamQuestionPath(0) {
		t.Fatalf("ExamAnswer = %q, %v", to, err)
	}
	if _, err := h.engine.ExamAnswer(ctx, rec, 7, 0, []string{"A"}, ExamNav{Action: NavStay}); err != nil {
		t.Fatal(err)
	}

	id := rec.Quiz.Order[0]
	if got := rec.Quiz.Answers[id]; !slices.Equal(got, []string{"A"}) {
		t.Errorf("buffered answer = %v, want [A]", got)
	}
	if len(h.ledger.events) != 0 {
		t.Errorf("exam answers must not reach the ledger, got %d events", len(h.ledger.events))
	}

	// empty selection clears the buffered answer
	if _, err := h.engine.ExamAnswer(ctx, rec, 7, 1, nil, ExamNav{Action: NavStay}); err != nil {
		t.Fatal(err)
	}
	if _, ok := rec.Quiz.Answers[rec.Quiz.Order[1]]; ok {
		t.Error("empty selection should clear the answer")
	}
}

func TestExamNavigationClampsOutOfRange(t *testing.T) {
	h := newHarness(t, bankOf(3)...)
	ctx := context.Background()
	rec := &session.Record{}
	startExam(t, h, rec, ExamOptions{Size: 3})

	view, err := h.engine.ExamView(ctx, rec, 7, 42)
	if err != nil {
		t.Fatal(err)
	}
	if view.Index != 0 || !view.Navigation[0].Current {
		t.Errorf("out-of-range index should clamp to 0, got %d", view.Index)
	}
	if view.RemainingSeconds != 1800 {
		t.Errorf("RemainingSeconds = %d, want 1800", view.RemainingSeconds)
	}

	to, err := h.engine.ExamAnswer(ctx, rec, 7, 2, []string{"A"}, ExamNav{Action: NavNext})
	if err != nil || to != ExamQuestionPath(2) {
		t.Errorf("next on last question = %q, %v", to, err)
	}
	to, err = h.engine.ExamAnswer(ctx, rec, 7, 0, nil, ExamNav{Action: NavPrev})
	if err != nil || to != ExamQuestionPath(0) {
		t.Errorf("prev on first question = %q, %v", to, err)
	}
	to, err = h.engine.ExamAnswer(ctx, rec, 7, 0, nil, ExamNav{Action: NavGoto, Target: -3})
	if err != nil || to != ExamQuestionPath(0) {
		t.Errorf("goto out of range = %q, %v", to, err)
	}

	view, err = h.engine.ExamView(ctx, rec, 7, 2)
	if err != nil {
		t.Fatal(err)
	}
	if view.AnsweredCount != 1 || !view.Navigation[2].Answered || !slices.Equal(view.Selected, []string{"A"}) {
		t.Errorf("unexpected view %+v", view)
	}
}

func TestExamPastDeadlineAutoSubmits(t *testing.T) {
	h := newHarness(t, bankOf(3)...)
	ctx := context.Background()
	rec := &session.Record{}
	startExam(t, h, rec, ExamOptions{Size: 3})
	past := h.clock.Add(-time.Second)
	rec.Quiz.Deadline = &past

	_, err := h.engine.ExamAnswer(ctx, rec, 7, 0, []string{"A"}, ExamNav{Action: NavNext})
	wantRedirect(t, err, ErrTimeUp, PathExamResult)
	if rec.Quiz != nil {
		t.Fatal("exam state should be cleared after auto-submit")
	}
	if rec.LastResult == nil {
		t.Fatal("auto-submit should publish a result")
	}
	if rec.LastResult.AnsweredCount != 0 || rec.LastResult.Score != 0 {
		t.Errorf("late answer must not be recorded: %+v", rec.LastResult)
	}
	found := false
	for _, n := range rec.PopNotices() {
		if n.Message == timeUpNotice {
			found = true
		}
	}
	if !found {
		t.Error("expected time's up notice")
	}
}

func TestExamViewPastDeadlineAutoSubmits(t *testing.T) {
	h := newHarness(t, bankOf(2)...)
	ctx := context.Background()
	rec := &session.Record{}
	startExam(t, h, rec, ExamOptions{Size: 2})
	h.clock = h.clock.Add(31 * time.Minute)

	_, err := h.engine.ExamView(ctx, rec, 7, 1)
	wantRedirect(t, err, ErrTimeUp, PathExamResult)
	if ActiveExam(rec) {
		t.Error("exam should no longer be active")
	}
}

func TestSubmitExamScoresAndIsIdempotent(t *testing.T) {
	h := newHarness(t, single(1, "A"), multi(2, "B", "C"), single(3, "D"))
	ctx := context.Background()
	rec := &session.Record{}
	startExam(t, h, rec, ExamOptions{Size: 3, Proctored: true, Password: "letmein"})
	rec.Quiz.Answers = map[int][]string{1: {"A"}, 2: {"B"}, 3: {"D"}}

	to, err := h.engine.SubmitExam(ctx, rec, 7)
	if err != nil || to != PathExamResult {
		t.Fatalf("SubmitExam = %q, %v", to, err)
	}
	if len(h.results.saved) != 1 {
		t.Fatalf("saved results = %d, want 1", len(h.results.saved))
	}
	saved := h.results.saved[0]
	if saved.Score != 2 || saved.TotalQuestions != 3 || saved.UserID != 7 || len(saved.Details) != 3 {
		t.Errorf("saved result = %+v", saved)
	}

	res, err := h.engine.LastResult(rec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 2 || res.ResultID != 1 {
		t.Errorf("report = %+v", res)
	}

	to, err = h.engine.SubmitExam(ctx, rec, 7)
	if err != nil || to != PathExam {
		t.Errorf("second SubmitExam = %q, %v", to, err)
	}
	if len(h.results.saved) != 1 {
		t.Errorf("duplicate exam result persisted")
	}
}

func TestUnproctoredExamIsNotPersisted(t *testing.T) {
	h := newHarness(t, bankOf(2)...)
	rec := &session.Record{}
	startExam(t, h, rec, ExamOptions{Size: 2})
	if _, err := h.engine.SubmitExam(context.Background(), rec, 7); err != nil {
		t.Fatal(err)
	}
	if len(h.results.saved) != 0 {
		t.Error("unproctored exam must not be persisted")
	}
	if rec.LastResult == nil || rec.LastResult.Proctored {
		t.Errorf("unexpected report %+v", rec.LastResult)
	}
}

func TestSubmitExamPersistFailureKeepsSession(t *testing.T) {
	h := newHarness(t, bankOf(2)...)
	h.results.err = errStoreDown
	rec := &session.Record{}
	startExam(t, h, rec, ExamOptions{Size: 2, Proctored: true, Password: "letmein"})

	_, err := h.engine.SubmitExam(context.Background(), rec, 7)
	wantRedirect(t, err, ErrPersist, ExamQuestionPath(0))
	if !ActiveExam(rec) || rec.LastResult != nil {
		t.Error("failed persist must leave the exam intact")
	}
}

func TestExpiredExamPersistFailureHasNoTimeUpNotice(t *testing.T) {
	h := newHarness(t, bankOf(2)...)
	h.results.err = errStoreDown
	rec := &session.Record{}
	startExam(t, h, rec, ExamOptions{Size: 2, Proctored: true, Password: "letmein"})
	rec.PopNotices()
	h.clock = h.clock.Add(31 * time.Minute)

	_, err := h.engine.ExamView(context.Background(), rec, 7, 0)
	wantRedirect(t, err, ErrPersist, ExamQuestionPath(0))
	notices := rec.PopNotices()
	if len(notices) != 1 || notices[0].Level != models.NoticeDanger {
		t.Errorf("notices = %+v, want only the save failure", notices)
	}
	if !ActiveExam(rec) {
		t.Error("exam should stay open for another submit")
	}
}

func TestExamScoreIsOrderIndependent(t *testing.T) {
	qs := []models.Question{single(1, "A"), multi(2, "A", "B"), single(3, "C"), single(4, "D")}
	answers := map[int][]string{1: {"A"}, 2: {"B", "A"}, 3: {"D"}}
	h := newHarness(t, qs...)

	orders := [][]int{{1, 2, 3, 4}, {4, 3, 2, 1}, {2, 4, 1, 3}}
	for _, order := range orders {
		st := &session.QuizState{Mode: session.ModeExam, Order: order, Answers: answers}
		report, err := h.engine.score(context.Background(), st)
		if err != nil {
			t.Fatal(err)
		}
		if report.Score != 2 || report.AnsweredCount != 3 {
			t.Errorf("order %v: score=%d answered=%d, want 2 and 3", order, report.Score, report.AnsweredCount)
		}
	}
}

func TestExamPagesWithoutSessionRedirect(t *testing.T) {
	h := newHarness(t, bankOf(2)...)
	ctx := context.Background()
	rec := &session.Record{}

	_, err := h.engine.ExamView(ctx, rec, 7, 0)
	wantRedirect(t, err, ErrStaleSession, PathExam)
	_, err = h.engine.ExamAnswer(ctx, rec, 7, 0, []string{"A"}, ExamNav{Action: NavNext})
	wantRedirect(t, err, ErrStaleSession, PathExam)
	_, err = h.engine.LastResult(rec)
	wantRedirect(t, err, ErrStaleSession, PathExam)

	// a practice session is not an exam
	if _, err := h.engine.StartPractice(ctx, rec, []int{1}); err != nil {
		t.Fatal(err)
	}
	_, err = h.engine.ExamView(ctx, rec, 7, 0)
	wantRedirect(t, err, ErrStaleSession, PathExam)
}
