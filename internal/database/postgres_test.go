package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core))
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), sql, nil)
	assert.Equal(t, 0, logs.Len())

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Equal(t, 1, logs.FilterMessage("gorm query error").Len())

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Equal(t, 1, logs.FilterMessage("slow query").Len())

	silent := l.LogMode(logger.Silent)
	silent.Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Equal(t, 1, logs.FilterMessage("gorm query error").Len())
}

func TestGormLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	l := NewGormLogger(zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel)))

	l.Info(context.Background(), "hidden %d", 1)
	assert.Empty(t, buf.String())

	l.LogMode(logger.Info).Info(context.Background(), "shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}
