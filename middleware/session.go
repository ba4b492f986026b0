package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quiz-server/apierr"
	"quiz-server/logger"
	"quiz-server/session"
)

const ctxSession = "session_record"

// Sessions loads the session record once per request and saves it after the
// handler chain has run. A new random id is issued when the cookie is missing or
// malformed. It must run after AuthMiddleware: a record carrying another user's
// quiz state is reset before any handler sees it.
func Sessions(store session.Store, cookieName string, maxAge int, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(cookieName)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
		}
		// refresh on every request so the cookie slides with the store TTL
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, sid, maxAge, "/", "", false, true)

		rec, err := store.Load(c.Request.Context(), sid)
		if err != nil {
			log.Error("load session failed", "error", err)
			apierr.Respond(c, apierr.Internal(err))
			return
		}
		if id, ok := CurrentUser(c); ok && rec.OwnerID != id.UserID {
			if rec.OwnerID != 0 {
				log.Info("session owner changed, dropping quiz state", "from_user", rec.OwnerID, "to_user", id.UserID)
			}
			rec.BindOwner(id.UserID)
		}
		c.Set(ctxSession, rec)

		c.Next()

		if err := store.Save(c.Request.Context(), sid, rec); err != nil {
			log.Error("save session failed", "error", err)
		}
	}
}

// Record returns the request's session record. It is never nil behind Sessions.
func Record(c *gin.Context) *session.Record {
	if v, ok := c.Get(ctxSession); ok {
		if rec, ok := v.(*session.Record); ok {
			return rec
		}
	}
	rec := &session.Record{}
	c.Set(ctxSession, rec)
	return rec
}
