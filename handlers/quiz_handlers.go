package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quiz-server/apierr"
	"quiz-server/exam"
	"quiz-server/middleware"
)

func paramInt(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		apierr.Respond(c, apierr.BadRequest("invalid_"+name, err))
		return 0, false
	}
	return n, true
}

// selectedOptions reads the chosen options from a form post or JSON body.
func selectedOptions(c *gin.Context) []string {
	var body struct {
		Answer []string `form:"answer" json:"answer"`
	}
	_ = c.ShouldBind(&body)
	return body.Answer
}

// Index renders the range selection page.
// GET /
func Index(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ranges, err := exam.BuildRanges(c.Request.Context(), d.Questions, d.RangeSize)
		if err != nil {
			d.fail(c, err)
			return
		}
		rec := record(c)
		render(c, http.StatusOK, "index", gin.H{
			"Title":      "Select questions",
			"Ranges":     ranges,
			"InProgress": rec.Quiz != nil,
			"ActiveExam": exam.ActiveExam(rec),
		})
	}
}

// StartQuiz starts practice over the selected ranges.
// POST /quiz/start
func StartQuiz(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Ranges []string `form:"ranges" json:"ranges"`
		}
		_ = c.ShouldBind(&body)
		to, err := d.Engine.StartRanges(c.Request.Context(), record(c), body.Ranges)
		if err != nil {
			d.fail(c, err)
			return
		}
		redirect(c, to)
	}
}

// ShowQuestion renders the current practice or review question.
// GET /question/:id
func ShowQuestion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramInt(c, "id")
		if !ok {
			return
		}
		user := middleware.MustUser(c)
		view, err := d.Engine.PracticeView(c.Request.Context(), record(c), user.UserID, id)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "question", gin.H{"Title": "Question " + strconv.Itoa(id), "View": view})
	}
}

// SubmitAnswer scores the answer and shows the same question with feedback.
// POST /question/:id/answer
func SubmitAnswer(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramInt(c, "id")
		if !ok {
			return
		}
		user := middleware.MustUser(c)
		to, err := d.Engine.SubmitAnswer(c.Request.Context(), record(c), user.UserID, id, selectedOptions(c))
		if err != nil {
			d.fail(c, err)
			return
		}
		redirect(c, to)
	}
}

// NextQuestion advances the cursor or completes the session.
// POST /quiz/next
func NextQuestion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		to, err := d.Engine.Next(c.Request.Context(), record(c))
		if err != nil {
			d.fail(c, err)
			return
		}
		redirect(c, to)
	}
}

// RetryQuestion starts a one-question session.
// POST /question/:id/retry
func RetryQuestion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramInt(c, "id")
		if !ok {
			return
		}
		to, err := d.Engine.RetryQuestion(c.Request.Context(), record(c), id)
		if err != nil {
			d.fail(c, err)
			return
		}
		redirect(c, to)
	}
}

// QuizComplete shows the practice summary once.
// GET /quiz/complete
func QuizComplete(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := d.Engine.Completion(record(c))
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "complete", gin.H{"Title": "Quiz complete", "Summary": summary})
	}
}
