package handlers

import (
	"fmt"
	"html/template"
	"path/filepath"
	"slices"
	"time"

	"github.com/gin-contrib/multitemplate"

	"quiz-server/models"
)

// pages maps each page name to its template file. Every page is rendered
// inside layout.html.
var pages = map[string]string{
	"error":               "error.html",
	"login":               "login.html",
	"register":            "register.html",
	"index":               "index.html",
	"question":            "question.html",
	"complete":            "complete.html",
	"exam_home":           "exam_home.html",
	"exam_question":       "exam_question.html",
	"exam_result":         "exam_result.html",
	"incorrect":           "incorrect.html",
	"checked":             "checked.html",
	"checked_list":        "checked_list.html",
	"mypage":              "mypage.html",
	"profile":             "profile.html",
	"ranking":             "ranking.html",
	"admin_dashboard":     "admin_dashboard.html",
	"admin_questions":     "admin_questions.html",
	"admin_question_form": "admin_question_form.html",
	"admin_import":        "admin_import.html",
	"admin_stats":         "admin_stats.html",
	"admin_results":       "admin_results.html",
	"admin_result":        "admin_result.html",
	"admin_errors":        "admin_errors.html",
}

var templateFuncs = template.FuncMap{
	"has":        func(list []string, s string) bool { return slices.Contains(list, s) },
	"inc":        func(i int) int { return i + 1 },
	"dec":        func(i int) int { return i - 1 },
	"pct":        func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"categories": func() []models.CheckCategory { return models.CheckCategories },
	"datetime":   func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"mmss":       func(seconds int) string { return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60) },
}

// LoadTemplates builds the page renderer from dir.
func LoadTemplates(dir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()
	layout := filepath.Join(dir, "layout.html")
	for name, file := range pages {
		r.AddFromFilesFuncs(name, templateFuncs, layout, filepath.Join(dir, file))
	}
	return r
}
