package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type Limiter interface {
	Allow(ctx context.Context, key string, capacity int, rate float64) (bool, error)
}

// セッション単位のレート制限。Redisが落ちているときは通す。
func RateLimit(l Limiter, burst int, rps float64, log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if uid, ok := c.Get(CtxUserIDKey).(string); ok && uid != "" {
				key = "user:" + uid
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 200*time.Millisecond)
			defer cancel()

			allowed, err := l.Allow(ctx, key, burst, rps)
			if err != nil {
				log.WithError(err).Warn("rate limiter redis error")
				return next(c)
			}
			if !allowed {
				return c.JSON(http.StatusTooManyRequests, errorJSON("too many requests"))
			}
			return next(c)
		}
	}
}
