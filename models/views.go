package models

// NoticeLevel mirrors the alert styles used by the templates.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeDanger  NoticeLevel = "danger"
)

// Notice is a transient message shown once on the next rendered page.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// RangeOption is one selectable question-id window on the range selection page.
type RangeOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Count int    `json:"count"`
}

// AnswerFeedback is the result of the previous practice answer, shown once.
type AnswerFeedback struct {
	QuestionID     int      `json:"question_id"`
	IsCorrect      bool     `json:"is_correct"`
	Selected       []string `json:"selected"`
	CorrectAnswers []string `json:"correct_answers"`
	Explanation    string   `json:"explanation"`
}

// Progress is the running tally shown during practice.
type Progress struct {
	Position      int     `json:"position"` // 1-based
	Total         int     `json:"total"`
	CorrectCount  int     `json:"correct_count"`
	AnsweredCount int     `json:"answered_count"`
	Accuracy      float64 `json:"accuracy"`
}

// QuestionView is the view-model for a practice or review question page.
type QuestionView struct {
	Question     Question               `json:"question"`
	MultiSelect  bool                   `json:"multi_select"`
	Mode         string                 `json:"mode"`
	Progress     Progress               `json:"progress"`
	ShowProgress bool                   `json:"show_progress"`
	Checked      map[CheckCategory]bool `json:"checked"`
	LastAnswer   *AnswerFeedback        `json:"last_answer,omitempty"`
	HasNext      bool                   `json:"has_next"`
}

// NavItem is one cell of the exam navigation map.
type NavItem struct {
	Index    int  `json:"index"`
	Answered bool `json:"answered"`
	Current  bool `json:"current"`
}

// ExamQuestionView is the view-model for a timed exam question page.
type ExamQuestionView struct {
	Index            int       `json:"index"`
	Total            int       `json:"total"`
	Question         Question  `json:"question"`
	MultiSelect      bool      `json:"multi_select"`
	Selected         []string  `json:"selected"`
	Navigation       []NavItem `json:"navigation"`
	AnsweredCount    int       `json:"answered_count"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Proctored        bool      `json:"proctored"`
}

// Completion is the final tally of a practice session, shown once.
type Completion struct {
	CorrectCount   int     `json:"correct_count"`
	AnsweredCount  int     `json:"answered_count"`
	TotalQuestions int     `json:"total_questions"`
	Accuracy       float64 `json:"accuracy"`
}

// ExamReport is the one-time "last result" view of a submitted exam.
type ExamReport struct {
	Score          int                `json:"score"`
	TotalQuestions int                `json:"total_questions"`
	AnsweredCount  int                `json:"answered_count"`
	Proctored      bool               `json:"proctored"`
	ResultID       int                `json:"result_id,omitempty"`
	Details        []ExamResultDetail `json:"details"`
}
