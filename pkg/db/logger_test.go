package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func observed(level logger.LogLevel, showSQL bool) (*QueryLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewQueryLogger(zap.New(core), level, showSQL, 50*time.Millisecond), logs
}

func query(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestQueryLoggerTrace(t *testing.T) {
	ctx := context.Background()

	t.Run("failed query", func(t *testing.T) {
		l, logs := observed(logger.Warn, false)
		l.Trace(ctx, time.Now(), query("UPDATE payouts"), errors.New("deadlock"))
		require.Equal(t, 1, logs.FilterMessage("db.query_failed").Len())
		require.NotContains(t, logs.All()[0].ContextMap(), "sql")
	})

	t.Run("record not found is quiet", func(t *testing.T) {
		l, logs := observed(logger.Warn, false)
		l.Trace(ctx, time.Now(), query("SELECT 1"), gorm.ErrRecordNotFound)
		require.Zero(t, logs.Len())
	})

	t.Run("slow query", func(t *testing.T) {
		l, logs := observed(logger.Warn, true)
		l.Trace(ctx, time.Now().Add(-time.Second), query("SELECT * FROM earnings"), nil)
		entries := logs.FilterMessage("db.slow_query").All()
		require.Len(t, entries, 1)
		require.Equal(t, "SELECT * FROM earnings", entries[0].ContextMap()["sql"])
	})

	t.Run("silent", func(t *testing.T) {
		l, logs := observed(logger.Info, true)
		l.LogMode(logger.Silent).Trace(ctx, time.Now(), query("SELECT 1"), errors.New("boom"))
		require.Zero(t, logs.Len())
	})
}
