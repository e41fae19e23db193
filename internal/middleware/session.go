package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bnka/portal/internal/models"
	"bnka/portal/internal/security"
)

const (
	currentUserKey  = "current_user"
	sessionTokenKey = "session_token"
)

// SessionResolver turns a raw session token into its user. ok is false for
// unknown or expired sessions; err is reserved for store failures.
type SessionResolver interface {
	CurrentUser(ctx context.Context, token string) (models.User, bool, error)
}

// SessionCookie describes the signed cookie that carries the session token.
type SessionCookie struct {
	Name     string
	Secret   string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

func (sc SessionCookie) Set(c *gin.Context, token string) {
	sc.write(c, security.SignCookieValue(sc.Secret, token), int(sc.MaxAge.Seconds()))
}

func (sc SessionCookie) Clear(c *gin.Context) {
	sc.write(c, "", -1)
}

// Token returns the verified session token, if any.
func (sc SessionCookie) Token(c *gin.Context) (string, bool) {
	raw, err := c.Cookie(sc.Name)
	if err != nil || raw == "" {
		return "", false
	}
	token, err := security.VerifyCookieValue(sc.Secret, raw)
	if err != nil {
		return "", false
	}
	return token, true
}

func (sc SessionCookie) write(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sc.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sc.Secure,
		SameSite: sc.SameSite,
	})
}

// Session resolves the session cookie on every request. Requests without a
// valid session continue unauthenticated.
func Session(resolver SessionResolver, cookie SessionCookie, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := cookie.Token(c)
		if !ok {
			c.Next()
			return
		}

		user, found, err := resolver.CurrentUser(c.Request.Context(), token)
		if err != nil {
			log.Error().
				Err(err).
				Str("request_id", RequestIDFrom(c)).
				Msg("resolve session failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		if !found {
			cookie.Clear(c)
			c.Next()
			return
		}

		c.Set(currentUserKey, user)
		c.Set(sessionTokenKey, token)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func SessionToken(c *gin.Context) (string, bool) {
	v, ok := c.Get(sessionTokenKey)
	if !ok {
		return "", false
	}
	token, ok := v.(string)
	return token, ok
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
