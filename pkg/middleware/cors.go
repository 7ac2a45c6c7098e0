package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// MirrorCORS allows every caller by echoing what it asks for: the Origin,
// the requested method and the requested headers come back as the allowed
// values, with credentials permitted. Preflight requests end here with 204.
func MirrorCORS() gin.HandlerFunc {
	handler := cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			return
		}

		// cors skips origins equal to http(s)://Host regardless of the
		// request scheme, so the mirror is set here for every origin.
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		if method := c.GetHeader("Access-Control-Request-Method"); method != "" {
			c.Header("Access-Control-Allow-Methods", method)
		}
		if headers := c.GetHeader("Access-Control-Request-Headers"); headers != "" {
			c.Header("Access-Control-Allow-Headers", headers)
		}

		handler(c)

		if c.Request.Method == http.MethodOptions && !c.IsAborted() {
			c.AbortWithStatus(http.StatusNoContent)
		}
	}
}
