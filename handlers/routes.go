package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quiz-server/middleware"
	"quiz-server/session"
)

// SessionOptions configures the per-browser session cookie.
type SessionOptions struct {
	Store      session.Store
	CookieName string
	MaxAge     int // seconds
}

// NewRouter builds the gin engine with the middleware chain and every route.
// The caller sets HTMLRender.
func NewRouter(d *Deps, so SessionOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.AuthMiddleware(d.Tokens, d.Log))
	r.Use(middleware.Sessions(so.Store, so.CookieName, so.MaxAge, d.Log))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	r.GET("/login", LoginPage(d))
	r.POST("/login", Login(d))
	r.GET("/register", RegisterPage(d))
	r.POST("/register", Register(d))
	r.POST("/logout", Logout(d))

	user := r.Group("/", middleware.RequireUser())
	{
		user.GET("/", Index(d))
		user.POST("/quiz/start", StartQuiz(d))
		user.POST("/quiz/next", NextQuestion(d))
		user.GET("/quiz/complete", QuizComplete(d))
		user.GET("/question/:id", ShowQuestion(d))
		user.POST("/question/:id/answer", SubmitAnswer(d))
		user.POST("/question/:id/retry", RetryQuestion(d))

		user.GET("/exam", ExamHome(d))
		user.POST("/exam/start", StartExam(d))
		user.GET("/exam/question/:index", ExamQuestion(d))
		user.POST("/exam/question/:index", ExamAnswer(d))
		user.POST("/exam/submit", SubmitExam(d))
		user.GET("/exam/result", ExamResult(d))

		user.GET("/review/incorrect", IncorrectList(d))
		user.POST("/review/incorrect/start", StartIncorrectReview(d))
		user.GET("/checked", CheckedHome(d))
		user.GET("/checked/:category", CheckedList(d))
		user.POST("/checked/:category/start", StartCheckedReview(d))
		user.POST("/api/checks/:question_id/toggle", ToggleCheck(d))

		user.GET("/mypage", MyPage(d))
		user.GET("/profile", ProfilePage(d))
		user.POST("/profile", UpdateProfile(d))
		user.POST("/reset", ResetHistory(d))
		user.GET("/ranking", Ranking(d))
	}

	admin := r.Group("/admin", middleware.RequireUser(), middleware.RequireAdmin())
	{
		admin.GET("", AdminDashboard(d))
		admin.GET("/questions", AdminListQuestions(d))
		admin.GET("/questions/new", AdminNewQuestion(d))
		admin.POST("/questions", AdminCreateQuestion(d))
		admin.GET("/questions/:id/edit", AdminEditQuestion(d))
		admin.POST("/questions/:id", AdminUpdateQuestion(d))
		admin.POST("/questions/:id/delete", AdminDeleteQuestion(d))
		admin.GET("/import", AdminImportPage(d))
		admin.POST("/import", AdminImport(d))
		admin.GET("/stats", AdminQuestionStats(d))
		admin.GET("/results", AdminExamResults(d))
		admin.GET("/results/:id", AdminExamResult(d))
		admin.GET("/errors", AdminErrorLogs(d))
	}
	return r
}
