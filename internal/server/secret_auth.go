package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

const secretHeader = "X-Arrivo-Secret"

// SecretRequired authenticates a trigger endpoint against its own shared
// secret. Each pipeline function carries an independent secret so one leaked
// credential cannot drive the whole pipeline. An unset secret disables the
// endpoint rather than leaving it open.
func (s *Server) SecretRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(secret) == "" {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		provided := c.GetHeader(secretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if !s.limiter.Allow(c.ClientIP()) {
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		c.Next()
	}
}
