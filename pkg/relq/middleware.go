package relq

import (
	"context"
	"log/slog"
	"time"
)

// MiddlewareNext continues the middleware chain.
type MiddlewareNext func(ctx context.Context) QueryResult

// QueryParams describes the query being run.
type QueryParams struct {
	Text      string
	Bindings  Bindings
	StartTime time.Time
}

// QueryResult is the outcome of a query.
type QueryResult struct {
	Data     any
	Error    error
	Duration time.Duration
}

// Middleware wraps query execution.
type Middleware func(ctx context.Context, params QueryParams, next MiddlewareNext) QueryResult

// chain builds the handler running mws around final, outermost first.
func chain(mws []Middleware, params QueryParams, final MiddlewareNext) MiddlewareNext {
	next := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context) QueryResult {
			return mw(ctx, params, inner)
		}
	}
	return next
}

// LogMiddleware logs every query with its duration.
func LogMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, params QueryParams, next MiddlewareNext) QueryResult {
		result := next(ctx)
		if result.Error != nil {
			logger.ErrorContext(ctx, "query failed",
				"query", params.Text,
				"duration", result.Duration,
				"error", result.Error)
		} else {
			logger.InfoContext(ctx, "query completed",
				"query", params.Text,
				"duration", result.Duration)
		}
		return result
	}
}

// TimeoutMiddleware bounds each query by timeout.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(ctx context.Context, params QueryParams, next MiddlewareNext) QueryResult {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return next(ctx)
	}
}
