package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"quiz-server/db"
	"quiz-server/models"
)

type loginForm struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
	Next     string `form:"next" json:"next"`
}

type registerForm struct {
	Username string `form:"username" json:"username" binding:"required,min=3,max=80"`
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required,min=8"`
}

// safeNext only allows local absolute paths as post-login targets.
func safeNext(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return "/"
}

// LoginPage renders the login form.
// GET /login
func LoginPage(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		render(c, http.StatusOK, "login", gin.H{"Title": "Log in", "Next": c.Query("next")})
	}
}

// Login checks the password and sets the auth cookie.
// POST /login
func Login(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form loginForm
		if err := c.ShouldBind(&form); err != nil {
			render(c, http.StatusBadRequest, "login", gin.H{"Title": "Log in", "Error": "Username and password are required."})
			return
		}
		u, err := d.Users.GetByUsername(c.Request.Context(), strings.TrimSpace(form.Username))
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			d.fail(c, err)
			return
		}
		if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(form.Password)) != nil {
			render(c, http.StatusUnauthorized, "login", gin.H{"Title": "Log in", "Error": "Invalid username or password.", "Next": form.Next})
			return
		}
		if err := d.Tokens.SetCookie(c, u); err != nil {
			d.fail(c, err)
			return
		}
		record(c).BindOwner(u.ID)
		d.Log.Info("user logged in", "user_id", u.ID)
		redirect(c, safeNext(form.Next))
	}
}

// RegisterPage renders the registration form.
// GET /register
func RegisterPage(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		render(c, http.StatusOK, "register", gin.H{"Title": "Register"})
	}
}

// Register creates an account and logs it in.
// POST /register
func Register(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form registerForm
		if err := c.ShouldBind(&form); err != nil {
			render(c, http.StatusBadRequest, "register", gin.H{"Title": "Register", "Error": "Please enter a username (3+ characters), a valid email and a password of at least 8 characters."})
			return
		}
		hash, err := HashPassword(form.Password)
		if err != nil {
			d.fail(c, err)
			return
		}
		u := &models.User{
			Username:     strings.TrimSpace(form.Username),
			Email:        strings.ToLower(strings.TrimSpace(form.Email)),
			PasswordHash: hash,
		}
		if err := d.Users.Create(c.Request.Context(), u); err != nil {
			if errors.Is(err, db.ErrDuplicateUser) {
				render(c, http.StatusConflict, "register", gin.H{"Title": "Register", "Error": "That username or email is already registered."})
				return
			}
			d.fail(c, err)
			return
		}
		if err := d.Tokens.SetCookie(c, u); err != nil {
			d.fail(c, err)
			return
		}
		record(c).BindOwner(u.ID)
		flash(c, models.NoticeSuccess, "Welcome, "+u.Username+"!")
		redirect(c, "/")
	}
}

// Logout clears the auth cookie and any running quiz.
// POST /logout
func Logout(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		d.Tokens.ClearCookie(c)
		rec := record(c)
		rec.ResetUserState()
		rec.OwnerID = 0
		flash(c, models.NoticeInfo, "You have been logged out.")
		redirect(c, "/login")
	}
}

// HashPassword returns the bcrypt hash stored for a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
