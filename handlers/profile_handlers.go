package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quiz-server/db"
	"quiz-server/middleware"
	"quiz-server/models"
)

type profileForm struct {
	Username  string `form:"username" json:"username" binding:"required,min=3,max=80"`
	Email     string `form:"email" json:"email" binding:"required,email"`
	Password  string `form:"password" json:"password" binding:"omitempty,min=8"`
	Password2 string `form:"password2" json:"password2" binding:"eqfield=Password"`
}

func renderProfile(c *gin.Context, status int, u *models.User, errMsg string) {
	data := gin.H{"Title": "Edit profile", "Profile": u}
	if errMsg != "" {
		data["Error"] = errMsg
	}
	render(c, status, "profile", data)
}

// ProfilePage shows the signed-in user's account details.
// GET /profile
func ProfilePage(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := d.Users.GetByID(c.Request.Context(), middleware.MustUser(c).UserID)
		if err != nil {
			d.fail(c, err)
			return
		}
		renderProfile(c, http.StatusOK, u, "")
	}
}

// UpdateProfile changes username and email, and the password when a new one is
// given. The auth cookie is reissued so the new username shows up at once.
// POST /profile
func UpdateProfile(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		u, err := d.Users.GetByID(ctx, middleware.MustUser(c).UserID)
		if err != nil {
			d.fail(c, err)
			return
		}

		var form profileForm
		if err := c.ShouldBind(&form); err != nil {
			renderProfile(c, http.StatusBadRequest, u, "Please enter a username (3+ characters) and a valid email. A new password needs 8+ characters and must be typed twice.")
			return
		}
		updated := *u
		updated.Username = strings.TrimSpace(form.Username)
		updated.Email = strings.ToLower(strings.TrimSpace(form.Email))
		if form.Password != "" {
			hash, err := HashPassword(form.Password)
			if err != nil {
				d.fail(c, err)
				return
			}
			updated.PasswordHash = hash
		}

		if err := d.Users.Update(ctx, &updated); err != nil {
			if errors.Is(err, db.ErrDuplicateUser) {
				renderProfile(c, http.StatusConflict, u, "That username or email is already registered.")
				return
			}
			d.fail(c, err)
			return
		}
		if err := d.Tokens.SetCookie(c, &updated); err != nil {
			d.fail(c, err)
			return
		}
		d.Log.Info("profile updated", "user_id", updated.ID, "password_changed", form.Password != "")
		flash(c, models.NoticeSuccess, "Your profile has been updated.")
		redirect(c, "/profile")
	}
}
