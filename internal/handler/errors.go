package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/tracking-ops-backend/internal/ratelimit"
	"github.com/jengzang/tracking-ops-backend/internal/service"
	"github.com/jengzang/tracking-ops-backend/pkg/response"
)

// fail maps service errors onto the ops envelope
func fail(c *gin.Context, err error, message string) {
	_ = c.Error(err)

	var limited *service.RateLimitedError
	switch {
	case errors.As(err, &limited):
		response.TooManyRequests(c, retryAfterSeconds(limited.RetryAfter), "rate_limited")
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "not_found")
	case errors.Is(err, service.ErrInvalidMode),
		errors.Is(err, service.ErrInvalidPolicy),
		errors.Is(err, service.ErrInvalidSchedule),
		errors.Is(err, service.ErrInvalidNote),
		errors.Is(err, service.ErrInvalidDomain):
		response.BadRequest(c, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, message)
	}
}

func retryAfterSeconds(d time.Duration) int {
	return ratelimit.Decision{RetryAfter: d}.RetryAfterSeconds()
}

// queryLimit reads ?limit=, returning def when absent
func queryLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// tickTime reads the optional ?now= override used by externally triggered ticks
func tickTime(c *gin.Context) (time.Time, bool) {
	raw := c.Query("now")
	if raw == "" {
		return time.Now(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
