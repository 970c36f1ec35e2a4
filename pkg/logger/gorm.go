package logger

import (
	"context"
	"errors"
	"time"

	"github.com/huaback/pkg/config"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger GORM 日志桥，级别和慢查询阈值都来自数据库配置
type gormLogger struct {
	base      *zap.Logger
	level     gormlogger.LogLevel
	slowQuery time.Duration
}

// NewGormLogger 创建 GORM 日志桥
func NewGormLogger(cfg *config.DatabaseConfig) gormlogger.Interface {
	return &gormLogger{
		base:      Get().Logger,
		level:     gormLevel(cfg.LogLevel),
		slowQuery: time.Duration(cfg.SlowQueryMs) * time.Millisecond,
	}
}

// gormLevel 数据库配置的日志级别映射到 GORM 的级别
func gormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	default:
		return gormlogger.Info
	}
}

// LogMode 返回指定级别的副本，GORM 的 Session 机制会调用
func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.base.Sugar().Infof(msg, args...)
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.base.Sugar().Warnf(msg, args...)
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.base.Sugar().Errorf(msg, args...)
	}
}

// Trace 记录 SQL 执行，超过阈值的按慢查询告警
//
// record not found 不算错误：仓储层把未找到当正常结果返回 nil，
// 这里跟着不刷错误日志。
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.level >= gormlogger.Error:
		l.base.Error("sql 执行失败", append(fields, zap.Error(err))...)
	case l.slowQuery > 0 && elapsed >= l.slowQuery && l.level >= gormlogger.Warn:
		l.base.Warn("慢查询", append(fields, zap.Duration("threshold", l.slowQuery))...)
	case l.level >= gormlogger.Info:
		l.base.Debug("sql", fields...)
	}
}
