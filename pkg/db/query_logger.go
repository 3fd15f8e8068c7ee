package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// queryLogger sends failed and slow statements to the service logger with
// the request fields already on ctx. Routine statements are not logged.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow}
}

func (q *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return q }

func (q *queryLogger) Info(ctx context.Context, msg string, _ ...any) {
	q.logg.Debug(ctx, msg)
}

func (q *queryLogger) Warn(ctx context.Context, msg string, _ ...any) {
	q.logg.Warn(ctx, msg)
}

func (q *queryLogger) Error(ctx context.Context, msg string, _ ...any) {
	q.logg.Error(ctx, msg, nil)
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sqlText, rows := fc()
		q.logg.Error(q.logg.WithFields(ctx, map[string]any{
			"sql":         sqlText,
			"rows":        rows,
			"duration_ms": elapsed.Milliseconds(),
		}), "db.query.failed", err)
	case q.slow > 0 && elapsed > q.slow:
		sqlText, rows := fc()
		q.logg.Warn(q.logg.WithFields(ctx, map[string]any{
			"sql":         sqlText,
			"rows":        rows,
			"duration_ms": elapsed.Milliseconds(),
			"threshold":   q.slow.String(),
		}), "db.query.slow")
	}
}
