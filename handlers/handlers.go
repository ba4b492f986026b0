package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quiz-server/apierr"
	"quiz-server/exam"
	"quiz-server/logger"
	"quiz-server/middleware"
	"quiz-server/models"
	"quiz-server/session"
)

// QuestionStore is the question bank as used by pages and admin screens.
type QuestionStore interface {
	exam.QuestionBank
	exam.RangeCounter
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, page, perPage int) ([]models.Question, int, error)
	Create(ctx context.Context, q models.Question) (int, error)
	Update(ctx context.Context, q models.Question) error
	Delete(ctx context.Context, id int) error
	ImportQuestions(ctx context.Context, qs []models.Question, deleteAll bool) (int, int, error)
	Stats(ctx context.Context) ([]models.QuestionStats, error)
}

// AnswerHistory is the read side of the answer ledger plus bulk reset.
type AnswerHistory interface {
	Progress(ctx context.Context, userID int) (models.UserProgress, error)
	IncorrectEntries(ctx context.Context, userID int) ([]models.IncorrectEntry, error)
	ResetUser(ctx context.Context, userID int) error
	Ranking(ctx context.Context, since time.Time, limit int) ([]models.RankingEntry, error)
	Count(ctx context.Context) (int, error)
}

type CheckStore interface {
	Toggle(ctx context.Context, userID, questionID int, category models.CheckCategory) (bool, error)
	Count(ctx context.Context, userID int, category models.CheckCategory) (int, error)
	ListDetailed(ctx context.Context, userID int, category models.CheckCategory) ([]models.CheckedEntry, error)
}

type ResultStore interface {
	List(ctx context.Context, limit int) ([]models.ExamResult, error)
	Get(ctx context.Context, id int) (*models.ExamResult, error)
	Count(ctx context.Context) (int, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Count(ctx context.Context) (int, error)
}

// AuditLog writes and reads the error_logs and admin_events tables.
type AuditLog interface {
	LogError(ctx context.Context, source, filePath string, lineNumber int, fieldName, errMsg string)
	LogAdminEvent(ctx context.Context, actor, action, target, notes string)
	RecentAdminEvents(ctx context.Context, limit int) ([]models.AdminEvent, error)
	RecentErrors(ctx context.Context, limit int) ([]models.ErrorLog, error)
}

// Deps is everything the handlers need.
type Deps struct {
	Engine    *exam.Engine
	Questions QuestionStore
	Answers   AnswerHistory
	Checks    CheckStore
	Results   ResultStore
	Users     UserStore
	Audit     AuditLog
	Tokens    *middleware.TokenIssuer
	Log       *logger.Logger

	RangeSize    int
	ExamSize     int
	ExamDuration time.Duration
	ImageDir     string // question images, served under /static/images
	Now          func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// render writes a page, or its data as JSON when the client asked for JSON.
// Pending notices and the current user are added to data.
func render(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Notices"] = middleware.Record(c).PopNotices()
	if apierr.WantsJSON(c) {
		c.JSON(status, data)
		return
	}
	if id, ok := middleware.CurrentUser(c); ok {
		data["User"] = id
	}
	c.HTML(status, page, data)
}

// redirect sends the browser to "to" after a form post.
func redirect(c *gin.Context, to string) {
	c.Redirect(http.StatusSeeOther, to)
}

// fail turns an engine or store error into a response. Recoverable engine
// failures become redirects; the notice is already in the session.
func (d *Deps) fail(c *gin.Context, err error) {
	if re, ok := exam.IsRedirect(err); ok {
		redirect(c, re.To)
		return
	}
	switch {
	case errors.Is(err, models.ErrNotFound):
		apierr.Respond(c, apierr.NotFound(errors.New("not found")))
	default:
		d.Log.Error("request failed", "path", c.Request.URL.Path, "error", err)
		_ = c.Error(err)
		apierr.Respond(c, apierr.Internal(err))
	}
}

// flash queues a notice on the current session.
func flash(c *gin.Context, level models.NoticeLevel, msg string) {
	middleware.Record(c).Flash(level, msg)
}

func record(c *gin.Context) *session.Record {
	return middleware.Record(c)
}
