package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const HeaderRequestID = "X-Request-ID"

// リクエストごとにIDを振ってアクセスログを出す
func RequestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := req.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, requestID)

			start := time.Now()
			l := log.WithFields(logrus.Fields{
				"http.req.path":   req.URL.Path,
				"http.req.method": req.Method,
				"http.req.id":     requestID,
			})
			l.Debug("request started")

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := logrus.Fields{
				"http.resp.took_ms": int64(time.Since(start) / time.Millisecond),
				"http.resp.status":  c.Response().Status,
				"http.resp.bytes":   c.Response().Size,
			}
			if uid, ok := c.Get(CtxUserIDKey).(string); ok {
				fields["session"] = uid
			}
			l.WithFields(fields).Info("request complete")
			return nil
		}
	}
}
