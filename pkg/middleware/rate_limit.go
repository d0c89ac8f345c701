package middleware

import (
	"time"

	"github.com/gorilla/mux"
	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit applies a per-client request cap. The widget endpoint is
// public, so this sits in front of every tenant's upstream quota.
func RateLimit(perMinute int64) mux.MiddlewareFunc {
	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: time.Minute,
		Limit:  perMinute,
	})
	middleware := mhttp.NewMiddleware(instance)
	return middleware.Handler
}
