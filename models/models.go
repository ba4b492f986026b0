package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Question struct represents a multiple-choice question in the bank.
// A question is multi-select when it has more than one correct answer.
type Question struct {
	ID             int      `json:"id"`
	QuestionText   string   `json:"question_text"`
	Options        []string `json:"options"`
	CorrectAnswers []string `json:"correct_answers"`
	Explanation    *string  `json:"explanation"`    // Pointer to allow NULL
	ImageFilename  *string  `json:"image_filename"` // Pointer to allow NULL
}

var (
	ErrQuestionTextRequired  = errors.New("question text is required")
	ErrOptionsRequired       = errors.New("at least one option is required")
	ErrCorrectAnswerRequired = errors.New("at least one correct answer is required")
)

// IsMultiSelect reports whether more than one option must be chosen.
func (q Question) IsMultiSelect() bool {
	return len(q.CorrectAnswers) > 1
}

// ExplanationText returns the explanation or "" when none is set.
func (q Question) ExplanationText() string {
	if q.Explanation == nil {
		return ""
	}
	return *q.Explanation
}

// Validate checks the bank invariant: every correct answer must be one of the options.
func (q Question) Validate() error {
	if strings.TrimSpace(q.QuestionText) == "" {
		return ErrQuestionTextRequired
	}
	if len(q.Options) == 0 {
		return ErrOptionsRequired
	}
	if len(q.CorrectAnswers) == 0 {
		return ErrCorrectAnswerRequired
	}
	options := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		options[o] = struct{}{}
	}
	for _, ca := range q.CorrectAnswers {
		if _, ok := options[ca]; !ok {
			return fmt.Errorf("correct answer %q is not one of the options", ca)
		}
	}
	return nil
}

// AnswerEvent struct is one append-only row of the answer ledger.
type AnswerEvent struct {
	ID              int       `json:"id"`
	UserID          int       `json:"user_id"`
	QuestionID      int       `json:"question_id"`
	SelectedOptions []string  `json:"selected_options"`
	IsCorrect       bool      `json:"is_correct"`
	Timestamp       time.Time `json:"timestamp"`
}

// CheckCategory names the kind of annotation a user attached to a question.
type CheckCategory string

const (
	CheckImportant CheckCategory = "important"
	CheckWeak      CheckCategory = "weak"
	CheckLater     CheckCategory = "later"
)

// CheckCategories lists the categories in display order.
var CheckCategories = []CheckCategory{CheckImportant, CheckWeak, CheckLater}

// Valid reports whether c is a known category.
func (c CheckCategory) Valid() bool {
	switch c {
	case CheckImportant, CheckWeak, CheckLater:
		return true
	}
	return false
}

// DisplayName is the label shown next to the check mark.
func (c CheckCategory) DisplayName() string {
	switch c {
	case CheckImportant:
		return "Important"
	case CheckWeak:
		return "Weak spot"
	case CheckLater:
		return "Review later"
	}
	return string(c)
}

// CheckMark struct is a per-user, per-question, per-category flag.
type CheckMark struct {
	ID         int           `json:"id"`
	UserID     int           `json:"user_id"`
	QuestionID int           `json:"question_id"`
	Category   CheckCategory `json:"category"`
	IsChecked  bool          `json:"is_checked"`
	Timestamp  time.Time     `json:"timestamp"`
}

// ExamResult struct is the durable snapshot of a completed proctored exam.
type ExamResult struct {
	ID             int                `json:"id"`
	UserID         int                `json:"user_id"`
	Username       string             `json:"username,omitempty"` // Filled when listed for admins
	Score          int                `json:"score"`
	TotalQuestions int                `json:"total_questions"`
	SubmittedAt    time.Time          `json:"submitted_at"`
	Details        []ExamResultDetail `json:"details"`
}

// ExamResultDetail struct records one question's outcome, independent of later bank edits.
type ExamResultDetail struct {
	QuestionID     int      `json:"question_id"`
	QuestionText   string   `json:"question_text"`
	UserAnswer     []string `json:"user_answer"`
	CorrectAnswers []string `json:"correct_answers"`
	Explanation    string   `json:"explanation"`
	IsCorrect      bool     `json:"is_correct"`
}

// User struct represents a registered account.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminEvent represents an entry in the admin_events table
type AdminEvent struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Target    string    `json:"target"`
	Notes     string    `json:"notes"`
}

// ErrorLog represents an entry in the error_logs table
type ErrorLog struct {
	ID           int       `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
	FilePath     string    `json:"file_path"`
	LineNumber   int       `json:"line_number"`
	FieldName    string    `json:"field_name"`
	ErrorMessage string    `json:"error_message"`
}

// QuestionStats for admin question_stats page
type QuestionStats struct {
	QuestionID     int    `json:"question_id"`
	QuestionText   string `json:"question_text"`
	TimesAnswered  int    `json:"times_answered"`
	CorrectCount   int    `json:"correct_count"`
	IncorrectUsers int    `json:"incorrect_users"`
}

// RankingEntry is one row of the answer-count ranking.
type RankingEntry struct {
	Username    string `json:"username"`
	AnswerCount int    `json:"answer_count"`
}

// UserProgress summarises a user's whole answer history.
type UserProgress struct {
	TotalAnswered   int           `json:"total_answered"`
	CorrectAnswered int           `json:"correct_answered"`
	Accuracy        float64       `json:"accuracy"`
	Latest          []AnswerEvent `json:"latest"`
}

// IncorrectEntry is a row of the incorrect-answers list.
type IncorrectEntry struct {
	Question     Question  `json:"question"`
	UserSelected []string  `json:"user_selected"`
	AnsweredAt   time.Time `json:"answered_at"`
}

// CheckedEntry is a row of a check-mark category list.
type CheckedEntry struct {
	Question  Question      `json:"question"`
	Category  CheckCategory `json:"category"`
	CheckedAt time.Time     `json:"checked_at"`
}

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")
