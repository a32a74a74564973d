package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const guestContextKey = "guest"

// requireGuest accepts the session token as a bearer header or, for
// websocket upgrades where browsers cannot set headers, a token query value.
func (s *Server) requireGuest() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		guest, err := s.sessions.Parse(token)
		if err != nil {
			message := "invalid session"
			if errors.Is(err, errSessionExpired) {
				message = "session expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
			return
		}
		c.Set(guestContextKey, guest)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func currentGuest(c *gin.Context) guestSession {
	value, ok := c.Get(guestContextKey)
	if !ok {
		return guestSession{}
	}
	guest, _ := value.(guestSession)
	return guest
}
