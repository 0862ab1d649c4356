package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	applog "marketplace-ledger/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// QueryLogger routes gorm output through zap, tagging each line with the
// active trace so queries can be matched to the request or task that ran them.
type QueryLogger struct {
	zap           *zap.Logger
	level         logger.LogLevel
	showSQL       bool
	slowThreshold time.Duration
}

func NewQueryLogger(z *zap.Logger, level logger.LogLevel, showSQL bool, slow time.Duration) *QueryLogger {
	return &QueryLogger{zap: z, level: level, showSQL: showSQL, slowThreshold: slow}
}

func (l *QueryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *QueryLogger) with(ctx context.Context) *zap.Logger {
	return l.zap.With(applog.TraceFields(ctx)...)
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.with(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.with(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.with(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("file", utils.FileWithLineNum()),
		zap.Int64("rows", rows),
		zap.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
	}
	if l.showSQL {
		fields = append(fields, zap.String("sql", sql))
	}

	log := l.with(ctx)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		log.Error("db.query_failed", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		log.Warn("db.slow_query", append(fields, zap.Duration("threshold", l.slowThreshold))...)
	case l.level >= logger.Info && l.showSQL:
		log.Debug("db.query", fields...)
	}
}
