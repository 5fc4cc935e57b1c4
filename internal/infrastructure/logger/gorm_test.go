package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func fieldMap(entry observer.LoggedEntry) map[string]any {
	return entry.ContextMap()
}

func TestGormLogger_Options(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)
	assert.Equal(t, 500*time.Millisecond, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)

	warn, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, warn.logLevel)
	assert.Equal(t, gormlogger.Info, gl.logLevel)

	var _ gormlogger.Interface = gl
}

func TestGormLogger_Trace(t *testing.T) {
	sql := func() (string, int64) { return `SELECT * FROM "devices"`, 3 }

	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		elapsed time.Duration
		err     error
		want    string
		wantLvl zapcore.Level
	}{
		{"error is logged", gormlogger.Error, 0, errors.New("relation does not exist"), "SQL Error", zapcore.ErrorLevel},
		{"record not found is ignored", gormlogger.Error, 0, gormlogger.ErrRecordNotFound, "", 0},
		{"slow query warns", gormlogger.Warn, 300 * time.Millisecond, nil, "SLOW SQL >= 200ms", zapcore.WarnLevel},
		{"normal query at info", gormlogger.Info, 0, nil, "SQL Query", zapcore.DebugLevel},
		{"silent logs nothing", gormlogger.Silent, 0, errors.New("boom"), "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gl, recorded := newObservedGormLogger(tt.level)
			gl.Trace(context.Background(), time.Now().Add(-tt.elapsed), sql, tt.err)

			if tt.want == "" {
				assert.Empty(t, recorded.All())
				return
			}
			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.want, logs[0].Message)
			assert.Equal(t, tt.wantLvl, logs[0].Level)
			assert.Equal(t, int64(3), fieldMap(logs[0])["rows"])
		})
	}
}

func TestGormLogger_Trace_ContextFields(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx, _ = WithTenantID(ctx, zap.NewNop(), "tenant-7")

	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := fieldMap(logs[0])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-7", fields["tenant_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestGormLogger_Messages(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn)
	gl.Info(context.Background(), "migrating %s", "devices")
	gl.Warn(context.Background(), "slow %d", 1)
	gl.Error(context.Background(), "failed %s", "x")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "slow 1", logs[0].Message)
	assert.Equal(t, "failed x", logs[1].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
