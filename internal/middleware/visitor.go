package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	VisitorCookieName = "visitor_id"
	visitorIDKey      = "visitor_id"
)

// Visitor assigns every browser a stable anonymous id used as the analytics
// distinct id.
func Visitor(maxAge time.Duration, secure bool, sameSite http.SameSite) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(VisitorCookieName)
		if err != nil || !validVisitorID(id) {
			id = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     VisitorCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				SameSite: sameSite,
			})
		}
		c.Set(visitorIDKey, id)
		c.Next()
	}
}

func VisitorID(c *gin.Context) string {
	return c.GetString(visitorIDKey)
}

func validVisitorID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
