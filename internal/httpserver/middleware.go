package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace-storefront/internal/metrics"
)

const sessionKey = "storefront.session"

// sessionMiddleware makes sure every cart-scoped request carries a session
// id, issuing a new cookie when the request has none or a malformed one.
func sessionMiddleware(sessions SessionIssuer, cookie string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cookie)
		if err != nil || !sessions.Valid(id) {
			id = sessions.Issue()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookie, id, sessions.CartTTLSeconds(), "/", "", c.Request.TLS != nil, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, strconv.Itoa(c.Writer.Status()), float64(time.Since(start).Microseconds())/1000)
	}
}
