package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quiz-server/apierr"
	"quiz-server/db"
	"quiz-server/middleware"
	"quiz-server/models"
)

const rankingLimit = 20

// IncorrectList lists the questions the user still has wrong.
// GET /review/incorrect
func IncorrectList(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.MustUser(c)
		entries, err := d.Answers.IncorrectEntries(c.Request.Context(), user.UserID)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "incorrect", gin.H{"Title": "Incorrect answers", "Entries": entries})
	}
}

// StartIncorrectReview starts a review over the incorrect set.
// POST /review/incorrect/start
func StartIncorrectReview(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.MustUser(c)
		to, err := d.Engine.StartReviewIncorrect(c.Request.Context(), record(c), user.UserID)
		if err != nil {
			d.fail(c, err)
			return
		}
		redirect(c, to)
	}
}

type categoryCount struct {
	Category models.CheckCategory `json:"category"`
	Label    string               `json:"label"`
	Count    int                  `json:"count"`
}

// CheckedHome shows how many questions are marked in each category.
// GET /checked
func CheckedHome(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.MustUser(c)
		counts := make([]categoryCount, 0, len(models.CheckCategories))
		for _, cat := range models.CheckCategories {
			n, err := d.Checks.Count(c.Request.Context(), user.UserID, cat)
			if err != nil {
				d.fail(c, err)
				return
			}
			counts = append(counts, categoryCount{Category: cat, Label: cat.DisplayName(), Count: n})
		}
		render(c, http.StatusOK, "checked", gin.H{"Title": "Checked questions", "Categories": counts})
	}
}

func categoryParam(c *gin.Context) (models.CheckCategory, bool) {
	cat := models.CheckCategory(c.Param("category"))
	if !cat.Valid() {
		apierr.Respond(c, apierr.NotFound(errors.New("unknown category")))
		return "", false
	}
	return cat, true
}

// CheckedList lists the questions marked with one category.
// GET /checked/:category
func CheckedList(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, ok := categoryParam(c)
		if !ok {
			return
		}
		user := middleware.MustUser(c)
		entries, err := d.Checks.ListDetailed(c.Request.Context(), user.UserID, cat)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "checked_list", gin.H{
			"Title":    cat.DisplayName(),
			"Category": cat,
			"Entries":  entries,
		})
	}
}

// StartCheckedReview starts a review over one category.
// POST /checked/:category/start
func StartCheckedReview(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, ok := categoryParam(c)
		if !ok {
			return
		}
		user := middleware.MustUser(c)
		to, err := d.Engine.StartReviewChecked(c.Request.Context(), record(c), user.UserID, cat)
		if err != nil {
			d.fail(c, err)
			return
		}
		redirect(c, to)
	}
}

// ToggleCheck flips a check mark and returns its new state.
// POST /api/checks/:question_id/toggle
func ToggleCheck(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		qid, ok := paramInt(c, "question_id")
		if !ok {
			return
		}
		var body struct {
			Category models.CheckCategory `json:"category" form:"category" binding:"required"`
		}
		if err := c.ShouldBind(&body); err != nil || !body.Category.Valid() {
			apierr.Respond(c, apierr.BadRequest("invalid_category", errors.New("category must be one of important, weak, later")))
			return
		}
		if _, err := d.Questions.Get(c.Request.Context(), qid); err != nil {
			d.fail(c, err)
			return
		}
		user := middleware.MustUser(c)
		checked, err := d.Checks.Toggle(c.Request.Context(), user.UserID, qid, body.Category)
		if err != nil {
			d.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"question_id": qid,
			"category":    body.Category,
			"is_checked":  checked,
		})
	}
}

// MyPage shows the user's progress summary.
// GET /mypage
func MyPage(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.MustUser(c)
		progress, err := d.Answers.Progress(c.Request.Context(), user.UserID)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "mypage", gin.H{"Title": "My page", "Progress": progress})
	}
}

// ResetHistory deletes the user's answers and check marks.
// POST /reset
func ResetHistory(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.MustUser(c)
		if err := d.Answers.ResetUser(c.Request.Context(), user.UserID); err != nil {
			d.fail(c, err)
			return
		}
		record(c).ClearQuiz()
		d.Log.Info("user history reset", "user_id", user.UserID)
		flash(c, models.NoticeSuccess, "Your answer history and check marks were deleted.")
		redirect(c, "/mypage")
	}
}

// Ranking shows answer counts per user for a period.
// GET /ranking?period=daily|weekly|monthly
func Ranking(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		since, period := db.RankingSince(c.Query("period"), d.now())
		entries, err := d.Answers.Ranking(c.Request.Context(), since, rankingLimit)
		if err != nil {
			d.fail(c, err)
			return
		}
		render(c, http.StatusOK, "ranking", gin.H{
			"Title":   "Ranking",
			"Period":  period,
			"Since":   since,
			"Entries": entries,
		})
	}
}
