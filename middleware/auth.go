package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"quiz-server/apierr"
	"quiz-server/logger"
	"quiz-server/models"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	ctxIdentity = "identity"
)

// claims struct to hold JWT custom claims
type claims struct {
	UserID int      `json:"uid"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Identity is the authenticated user attached to a request.
type Identity struct {
	UserID   int
	Username string
	Roles    []string
}

func (i Identity) IsAdmin() bool { return slices.Contains(i.Roles, RoleAdmin) }

// TokenIssuer signs and verifies login tokens.
type TokenIssuer struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
	CookieName string
	now        func() time.Time
}

func NewTokenIssuer(signingKey, issuer string, ttl time.Duration, cookieName string) *TokenIssuer {
	return &TokenIssuer{SigningKey: []byte(signingKey), Issuer: issuer, TTL: ttl, CookieName: cookieName, now: time.Now}
}

// IssueToken returns a signed token for u.
func (t *TokenIssuer) IssueToken(u *models.User) (string, error) {
	roles := []string{RoleUser}
	if u.IsAdmin {
		roles = append(roles, RoleAdmin)
	}
	now := t.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: u.ID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			Issuer:    t.Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
		},
	})
	return tok.SignedString(t.SigningKey)
}

// Parse validates tokenString and returns the identity it carries.
func (t *TokenIssuer) Parse(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.SigningKey, nil
	}, jwt.WithIssuer(t.Issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(t.now))
	if err != nil {
		return Identity{}, err
	}
	cl, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("invalid token claims")
	}
	return Identity{UserID: cl.UserID, Username: cl.Subject, Roles: cl.Roles}, nil
}

// SetCookie stores a freshly issued token for u in the auth cookie.
func (t *TokenIssuer) SetCookie(c *gin.Context, u *models.User) error {
	tok, err := t.IssueToken(u)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(t.CookieName, tok, int(t.TTL.Seconds()), "/", "", false, true)
	return nil
}

func (t *TokenIssuer) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(t.CookieName, "", -1, "/", "", false, true)
}

// AuthMiddleware attaches the identity from the auth cookie or a Bearer header.
// Requests without a valid token continue anonymously.
func AuthMiddleware(issuer *TokenIssuer, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			tokenString, _ = c.Cookie(issuer.CookieName)
		}
		if tokenString == "" {
			c.Next()
			return
		}

		id, err := issuer.Parse(tokenString)
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				log.Debug("auth token expired")
			default:
				log.Warn("rejected auth token", "error", err)
			}
			issuer.ClearCookie(c)
			c.Next()
			return
		}
		c.Set(ctxIdentity, id)
		c.Next()
	}
}

// CurrentUser returns the request's identity, if any.
func CurrentUser(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// MustUser returns the identity set by RequireUser.
func MustUser(c *gin.Context) Identity {
	id, _ := CurrentUser(c)
	return id
}

// RequireUser sends anonymous page requests to the login page and anonymous API
// requests a 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}
		if apierr.WantsJSON(c) {
			apierr.Respond(c, apierr.Unauthorized())
			return
		}
		c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}

// RoleCheckMiddleware checks if the user has one of the required roles.
func RoleCheckMiddleware(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentUser(c)
		if !ok {
			apierr.Respond(c, apierr.Unauthorized())
			return
		}
		for _, role := range requiredRoles {
			if slices.Contains(id.Roles, role) {
				c.Next()
				return
			}
		}
		apierr.Respond(c, apierr.Forbidden())
	}
}

func RequireAdmin() gin.HandlerFunc {
	return RoleCheckMiddleware(RoleAdmin)
}
