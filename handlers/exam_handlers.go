package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quiz-server/exam"
	"quiz-server/middleware"
)

type examStartForm struct {
	Proctored bool   `form:"proctored" json:"proctored"`
	Password  string `form:"password" json:"password"`
}

type examAnswerForm struct {
	Answer []string `form:"answer" json:"answer"`
	Action string   `form:"action" json:"action"`
	Target int      `form:"target" json:"target"`
}

// ExamHome shows the exam landing page.
// GET /exam
func ExamHome(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec := record(c)
		data := gin.H{
			"Title":    "Timed exam",
			"Size":     d.ExamSize,
			"Minutes":  int(d.ExamDuration.Minutes()),
			"Active":   exam.ActiveExam(rec),
			"Resuming": "",
		}
		if exam.ActiveExam(rec) {
			data["Resuming"] = exam.ExamQuestionPath(rec.Quiz.Cursor)
		}
		render(c, http.StatusOK, "exam_home", data)
	}
}

// StartExam starts a timed exam.
// POST /exam/start
func StartExam(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form examStartForm
		_ = c.ShouldBind(&form)
		to, err := d.Engine.StartExam(c.Request.Context(), record(c), exam.ExamOptions{
			Proctored: form.Proctored,
			Password:  form.Password,
		})
		if err != nil {
			d.fail(c, err)
			return
		}
		if form.Proctored {
			user := middleware.MustUser(c)
			d.Log.Info("proctored exam started", "user_id", user.UserID)
		}
		redirect(c, to)
	}
}

// ExamQuestion renders one exam question with the navigation map.
// GET /exam/question/:index
func ExamQuestion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, ok := paramInt(c, "index")
		if !ok {
			return
		}
		user := middleware.MustUser(c)
		view, err := d.Engine.ExamView(c.Request.Context(), record(c), user.UserID, index)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "exam_question", gin.H{
			"Title": "Exam question " + strconv.Itoa(view.Index+1) + " of " + strconv.Itoa(view.Total),
			"View":  view,
		})
	}
}

// ExamAnswer buffers the answer for one exam question and navigates.
// POST /exam/question/:index
func ExamAnswer(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, ok := paramInt(c, "index")
		if !ok {
			return
		}
		var form examAnswerForm
		_ = c.ShouldBind(&form)
		action := exam.NavAction(form.Action)
		if action == "" {
			action = exam.NavStay
		}
		user := middleware.MustUser(c)
		to, err := d.Engine.ExamAnswer(c.Request.Context(), record(c), user.UserID, index, form.Answer,
			exam.ExamNav{Action: action, Target: form.Target})
		if err != nil {
			d.fail(c, err)
			return
		}
		redirect(c, to)
	}
}

// SubmitExam scores the running exam.
// POST /exam/submit
func SubmitExam(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.MustUser(c)
		to, err := d.Engine.SubmitExam(c.Request.Context(), record(c), user.UserID)
		if err != nil {
			d.fail(c, err)
			return
		}
		redirect(c, to)
	}
}

// ExamResult shows the last submitted exam once.
// GET /exam/result
func ExamResult(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := d.Engine.LastResult(record(c))
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "exam_result", gin.H{"Title": "Exam result", "Report": report})
	}
}
