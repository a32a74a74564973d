package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrSize = 320

func (s *Server) handleRoomQR(c *gin.Context) {
	room, ok := s.roomFromURI(c)
	if !ok {
		return
	}
	png, err := encodeJoinQR(s.joinURL(c, room.Code))
	if err != nil {
		s.logger.Error("qr generation failed", zap.String("room_id", room.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr generation failed"})
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

func encodeJoinQR(url string) ([]byte, error) {
	return qrcode.Encode(url, qrcode.Medium, qrSize)
}

// joinURL prefers the configured public URL and otherwise derives the base
// from the request, respecting X-Forwarded-Proto.
func (s *Server) joinURL(c *gin.Context, code string) string {
	base := s.cfg.PublicURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/join/" + code
}
