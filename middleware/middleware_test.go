package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"quiz-server/logger"
	"quiz-server/models"
	"quiz-server/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newIssuer() *TokenIssuer {
	return NewTokenIssuer("test-key", "quiz-test", time.Hour, "quiz_auth")
}

func TestTokenRoundTrip(t *testing.T) {
	iss := newIssuer()
	tok, err := iss.IssueToken(&models.User{ID: 4, Username: "root", IsAdmin: true})
	if err != nil {
		t.Fatal(err)
	}
	id, err := iss.Parse(tok)
	if err != nil {
		t.Fatal(err)
	}
	if id.UserID != 4 || id.Username != "root" || !id.IsAdmin() {
		t.Errorf("identity = %+v", id)
	}

	other := NewTokenIssuer("other-key", "quiz-test", time.Hour, "quiz_auth")
	if _, err := other.Parse(tok); err == nil {
		t.Error("token signed with another key must be rejected")
	}

	expired := newIssuer()
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.IssueToken(&models.User{ID: 4, Username: "root"})
	if _, err := iss.Parse(old); err == nil {
		t.Error("expired token must be rejected")
	}
}

func authRouter(iss *TokenIssuer) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(iss, logger.Nop()))
	r.GET("/mypage", RequireUser(), func(c *gin.Context) {
		c.String(http.StatusOK, MustUser(c).Username)
	})
	r.GET("/admin", RequireUser(), RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, "admin")
	})
	return r
}

func TestRequireUserRedirectsAnonymousPages(t *testing.T) {
	r := authRouter(newIssuer())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mypage", nil))
	if w.Code != http.StatusSeeOther || !strings.HasPrefix(w.Header().Get("Location"), "/login?next=") {
		t.Errorf("anonymous page: %d %q", w.Code, w.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/mypage", nil)
	req.Header.Set("Accept", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous JSON: %d", w.Code)
	}
}

func TestRoleCheck(t *testing.T) {
	iss := newIssuer()
	r := authRouter(iss)
	userTok, _ := iss.IssueToken(&models.User{ID: 1, Username: "alice"})
	adminTok, _ := iss.IssueToken(&models.User{ID: 2, Username: "root", IsAdmin: true})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: "quiz_auth", Value: userTok})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("admin: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/mypage", nil)
	req.AddCookie(&http.Cookie{Name: "quiz_auth", Value: userTok})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "alice" {
		t.Errorf("user page: %d %q", w.Code, w.Body.String())
	}
}

func TestSessionsPersistRecordAcrossRequests(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	r := gin.New()
	r.Use(Sessions(store, "quiz_session", 3600, logger.Nop()))
	r.POST("/flash", func(c *gin.Context) {
		Record(c).Flash(models.NoticeInfo, "hello")
		c.Status(http.StatusNoContent)
	})
	r.GET("/read", func(c *gin.Context) {
		c.JSON(http.StatusOK, Record(c).PopNotices())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/flash", nil))
	var sid string
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "quiz_session" {
			sid = ck.Value
		}
	}
	if sid == "" {
		t.Fatal("session cookie not set")
	}

	rec, err := store.Load(context.Background(), sid)
	if err != nil || len(rec.Notices) != 1 {
		t.Fatalf("stored record = %+v, %v", rec, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	req.AddCookie(&http.Cookie{Name: "quiz_session", Value: sid})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), "hello") {
		t.Errorf("body = %s", w.Body.String())
	}
	rec, _ = store.Load(context.Background(), sid)
	if len(rec.Notices) != 0 {
		t.Error("popped notices should be saved as cleared")
	}
}
