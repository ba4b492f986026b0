package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"quiz-server/ingestion"
	"quiz-server/middleware"
	"quiz-server/models"
	"quiz-server/utils"
)

const (
	adminPageSize     = 25
	recentEventsLimit = 5
	recentErrorsLimit = 100
	resultsLimit      = 100
)

// questionForm is the admin create/edit form. Options and correct answers are
// one per line.
type questionForm struct {
	QuestionText   string `form:"question_text" json:"question_text"`
	Options        string `form:"options" json:"options"`
	CorrectAnswers string `form:"correct_answers" json:"correct_answers"`
	Explanation    string `form:"explanation" json:"explanation"`
	ImageFilename  string `form:"image_filename" json:"image_filename"`
}

func (f questionForm) question(id int) models.Question {
	return models.Question{
		ID:             id,
		QuestionText:   f.QuestionText,
		Options:        utils.SplitLines(f.Options),
		CorrectAnswers: utils.SplitLines(f.CorrectAnswers),
		Explanation:    utils.OptionalString(f.Explanation),
		ImageFilename:  utils.OptionalString(f.ImageFilename),
	}
}

var allowedImageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

var errBadImage = errors.New("only png, jpg, jpeg and gif images can be uploaded")

// imageName reduces an uploaded file name to a safe base name.
func imageName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	return strings.TrimLeft(base, "._")
}

// saveQuestionImage stores the optional "image" upload under d.ImageDir and
// returns its file name, or "" when nothing was uploaded.
func (d *Deps) saveQuestionImage(c *gin.Context) (string, error) {
	file, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if file.Filename == "" {
		return "", nil
	}
	name := imageName(file.Filename)
	if !allowedImageExts[strings.ToLower(filepath.Ext(name))] || strings.TrimSuffix(name, filepath.Ext(name)) == "" {
		return "", errBadImage
	}
	if err := os.MkdirAll(d.ImageDir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	if err := c.SaveUploadedFile(file, filepath.Join(d.ImageDir, name)); err != nil {
		return "", fmt.Errorf("save image %s: %w", name, err)
	}
	d.Log.Info("question image uploaded", "file", name, "size", file.Size)
	return name, nil
}

// bindQuestionForm binds the form and applies any image upload to it.
func (d *Deps) bindQuestionForm(c *gin.Context) (questionForm, error) {
	var form questionForm
	_ = c.ShouldBind(&form)
	name, err := d.saveQuestionImage(c)
	if err != nil {
		return form, err
	}
	if name != "" {
		form.ImageFilename = name
	}
	return form, nil
}

func actor(c *gin.Context) string {
	return middleware.MustUser(c).Username
}

// AdminDashboard renders the admin dashboard with metrics and recent activity.
// GET /admin
func AdminDashboard(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		questions, err := d.Questions.Count(ctx)
		if err != nil {
			d.fail(c, err)
			return
		}
		users, err := d.Users.Count(ctx)
		if err != nil {
			d.fail(c, err)
			return
		}
		answers, err := d.Answers.Count(ctx)
		if err != nil {
			d.fail(c, err)
			return
		}
		results, err := d.Results.Count(ctx)
		if err != nil {
			d.fail(c, err)
			return
		}
		events, err := d.Audit.RecentAdminEvents(ctx, recentEventsLimit)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "admin_dashboard", gin.H{
			"Title":             "Admin dashboard",
			"TotalQuestions":    questions,
			"TotalUsers":        users,
			"TotalAnswers":      answers,
			"TotalExamResults":  results,
			"RecentAdminEvents": events,
		})
	}
}

// AdminListQuestions lists the bank, newest first.
// GET /admin/questions?page=N
func AdminListQuestions(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := utils.ParsePositiveInt(c.Query("page"), 1)
		questions, total, err := d.Questions.List(c.Request.Context(), page, adminPageSize)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "admin_questions", gin.H{
			"Title":      "Questions",
			"Questions":  questions,
			"Total":      total,
			"Page":       page,
			"TotalPages": utils.TotalPages(total, adminPageSize),
		})
	}
}

// AdminNewQuestion renders an empty question form.
// GET /admin/questions/new
func AdminNewQuestion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		render(c, http.StatusOK, "admin_question_form", gin.H{"Title": "New question", "Action": "/admin/questions"})
	}
}

// AdminCreateQuestion adds a question to the bank.
// POST /admin/questions
func AdminCreateQuestion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := d.bindQuestionForm(c)
		if err != nil && !errors.Is(err, errBadImage) {
			d.fail(c, err)
			return
		}
		q := form.question(0)
		if err == nil {
			err = q.Validate()
		}
		if err != nil {
			render(c, http.StatusBadRequest, "admin_question_form", gin.H{
				"Title": "New question", "Action": "/admin/questions", "Form": form, "Error": err.Error(),
			})
			return
		}
		id, err := d.Questions.Create(c.Request.Context(), q)
		if err != nil {
			d.fail(c, err)
			return
		}
		d.Audit.LogAdminEvent(c.Request.Context(), actor(c), "create_question", strconv.Itoa(id), "")
		flash(c, models.NoticeSuccess, fmt.Sprintf("Question %d created.", id))
		redirect(c, "/admin/questions")
	}
}

// AdminEditQuestion renders the form for an existing question.
// GET /admin/questions/:id/edit
func AdminEditQuestion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramInt(c, "id")
		if !ok {
			return
		}
		q, err := d.Questions.Get(c.Request.Context(), id)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "admin_question_form", gin.H{
			"Title":    fmt.Sprintf("Edit question %d", id),
			"Action":   fmt.Sprintf("/admin/questions/%d", id),
			"Question": q,
			"Form": questionForm{
				QuestionText:   q.QuestionText,
				Options:        strings.Join(q.Options, "\n"),
				CorrectAnswers: strings.Join(q.CorrectAnswers, "\n"),
				Explanation:    q.ExplanationText(),
				ImageFilename:  deref(q.ImageFilename),
			},
		})
	}
}

// AdminUpdateQuestion saves an edited question.
// POST /admin/questions/:id
func AdminUpdateQuestion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramInt(c, "id")
		if !ok {
			return
		}
		form, err := d.bindQuestionForm(c)
		if err != nil && !errors.Is(err, errBadImage) {
			d.fail(c, err)
			return
		}
		q := form.question(id)
		if err == nil {
			err = q.Validate()
		}
		if err != nil {
			render(c, http.StatusBadRequest, "admin_question_form", gin.H{
				"Title":  fmt.Sprintf("Edit question %d", id),
				"Action": fmt.Sprintf("/admin/questions/%d", id),
				"Form":   form,
				"Error":  err.Error(),
			})
			return
		}
		if err := d.Questions.Update(c.Request.Context(), q); err != nil {
			d.fail(c, err)
			return
		}
		d.Audit.LogAdminEvent(c.Request.Context(), actor(c), "update_question", strconv.Itoa(id), "")
		flash(c, models.NoticeSuccess, fmt.Sprintf("Question %d updated.", id))
		redirect(c, "/admin/questions")
	}
}

// AdminDeleteQuestion removes a question. Its answer events, check marks and
// exam result snapshots are kept.
// POST /admin/questions/:id/delete
func AdminDeleteQuestion(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramInt(c, "id")
		if !ok {
			return
		}
		if err := d.Questions.Delete(c.Request.Context(), id); err != nil {
			d.fail(c, err)
			return
		}
		d.Audit.LogAdminEvent(c.Request.Context(), actor(c), "delete_question", strconv.Itoa(id), "")
		flash(c, models.NoticeSuccess, fmt.Sprintf("Question %d deleted.", id))
		redirect(c, "/admin/questions")
	}
}

// AdminImportPage renders the CSV upload form.
// GET /admin/import
func AdminImportPage(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		render(c, http.StatusOK, "admin_import", gin.H{"Title": "Import questions"})
	}
}

// AdminImport imports an uploaded question CSV. Any invalid row rejects the
// whole file.
// POST /admin/import
func AdminImport(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			render(c, http.StatusBadRequest, "admin_import", gin.H{"Title": "Import questions", "Error": "Please choose a CSV file."})
			return
		}
		f, err := fh.Open()
		if err != nil {
			d.fail(c, err)
			return
		}
		defer f.Close()

		deleteAll := c.PostForm("delete_all") == "on" || c.PostForm("delete_all") == "true"
		report, err := ingestion.ImportQuestionsCSV(c.Request.Context(), d.Questions, d.Audit, fh.Filename, f, deleteAll)
		if err != nil {
			if errors.Is(err, ingestion.ErrBadHeader) {
				render(c, http.StatusBadRequest, "admin_import", gin.H{"Title": "Import questions", "Error": err.Error()})
				return
			}
			d.fail(c, err)
			return
		}
		if len(report.Errors) > 0 {
			render(c, http.StatusUnprocessableEntity, "admin_import", gin.H{
				"Title":  "Import questions",
				"Error":  fmt.Sprintf("%d invalid rows; nothing was imported.", len(report.Errors)),
				"Report": report,
			})
			return
		}
		notes := fmt.Sprintf("inserted=%d updated=%d delete_all=%t", report.Inserted, report.Updated, deleteAll)
		d.Audit.LogAdminEvent(c.Request.Context(), actor(c), "import_questions", fh.Filename, notes)
		d.Log.Info("questions imported", "file", fh.Filename, "inserted", report.Inserted, "updated", report.Updated)
		flash(c, models.NoticeSuccess, fmt.Sprintf("Imported %d new and %d updated questions.", report.Inserted, report.Updated))
		redirect(c, "/admin/questions")
	}
}

// AdminQuestionStats shows per-question answer statistics.
// GET /admin/stats
func AdminQuestionStats(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := d.Questions.Stats(c.Request.Context())
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "admin_stats", gin.H{"Title": "Question statistics", "Stats": stats})
	}
}

// AdminExamResults lists recent proctored exam results.
// GET /admin/results
func AdminExamResults(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := d.Results.List(c.Request.Context(), resultsLimit)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "admin_results", gin.H{"Title": "Exam results", "Results": results})
	}
}

// AdminExamResult shows one stored exam result with its per-question details.
// GET /admin/results/:id
func AdminExamResult(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramInt(c, "id")
		if !ok {
			return
		}
		res, err := d.Results.Get(c.Request.Context(), id)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "admin_result", gin.H{"Title": fmt.Sprintf("Exam result %d", id), "Result": res})
	}
}

// AdminErrorLogs lists recent import errors.
// GET /admin/errors
func AdminErrorLogs(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := d.Audit.RecentErrors(c.Request.Context(), recentErrorsLimit)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "admin_errors", gin.H{"Title": "Error logs", "ErrorLogs": logs})
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
