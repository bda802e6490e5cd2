package api

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func NewLogger() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		startTime := time.Now()
		err = c.Next()

		msg := "HTTP Request"
		if err != nil {
			msg = err.Error()
		}

		code := c.Response().StatusCode()
		if fiberError, ok := err.(*fiber.Error); ok {
			code = fiberError.Code
		}

		ipAddress := c.IP()
		if forwardedFor := c.Get(fiber.HeaderXForwardedFor); forwardedFor != "" {
			ipAddress = forwardedFor
		}

		requestLogger := log.With().
			Int("status", code).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", ipAddress).
			Str("latency", time.Since(startTime).String()).
			Str("user-agent", c.Get(fiber.HeaderUserAgent)).
			Logger()

		var event *zerolog.Event
		switch {
		case code >= fiber.StatusBadRequest && code < fiber.StatusInternalServerError:
			event = requestLogger.Warn()
		case code >= http.StatusInternalServerError:
			event = requestLogger.Error()
		case c.Path() == "/api/health":
			event = requestLogger.Debug()
		default:
			event = requestLogger.Info()
		}
		event.Msg(msg)

		return err
	}
}
