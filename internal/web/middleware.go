package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/todoweb/internal/metrics"
	"github.com/nhle/todoweb/internal/session"
)

// identityKey is the gin context key holding the request's *session.Identity.
const identityKey = "todoweb_identity"

// identity resolves the session cookie, provisioning a guest when the
// browser has no valid session.
func (s *Server) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var id *session.Identity
		if raw, err := c.Cookie(s.cookie.CookieName); err == nil {
			id, err = s.sessions.Resolve(ctx, raw)
			if err != nil && !errors.Is(err, session.ErrNoSession) {
				s.fail(c, err)
				return
			}
		}

		if id == nil {
			var err error
			id, err = s.sessions.Provision(ctx)
			if err != nil {
				s.fail(c, err)
				return
			}
			if s.metrics != nil {
				s.metrics.GuestsProvisioned.Inc()
			}
		}
		// Reissued on every request so the cookie expires with the session.
		s.setSessionCookie(c, id)

		c.Set(identityKey, id)
		c.Next()
	}
}

// currentIdentity returns the identity stored by the identity middleware.
func currentIdentity(c *gin.Context) *session.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*session.Identity); ok {
			return id
		}
	}
	return nil
}

// setIdentity replaces the request identity and reissues the cookie.
func (s *Server) setIdentity(c *gin.Context, id *session.Identity) {
	c.Set(identityKey, id)
	s.setSessionCookie(c, id)
}

func (s *Server) setSessionCookie(c *gin.Context, id *session.Identity) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookie.CookieName, s.sessions.Sign(id.Token),
		int(s.maxAge.Seconds()), "/", "", s.cookie.SecureCookie, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookie.CookieName, "", -1, "/", "", s.cookie.SecureCookie, true)
}

// observe logs each request and records its metrics.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, metrics.StatusClass(status)).Inc()
			s.metrics.RequestDuration.WithLabelValues(route, c.Request.Method).Observe(elapsed.Seconds())
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", elapsed,
		}
		if id := currentIdentity(c); id != nil {
			attrs = append(attrs, "user_id", id.User.ID)
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("request", attrs...)
			return
		}
		s.logger.Info("request", attrs...)
	}
}

// limit rejects clients exceeding the login attempt rate.
func (s *Server) limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		if s.metrics != nil {
			s.metrics.LoginFailures.WithLabelValues("rate_limited").Inc()
		}
		s.logger.Warn("login attempts rate limited", "client_ip", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "too many attempts, try again later",
		})
	}
}
