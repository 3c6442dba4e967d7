package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var levels = map[string]zapcore.Level{
	"debug": zap.DebugLevel,
	"info":  zap.InfoLevel,
	"warn":  zap.WarnLevel,
	"error": zap.ErrorLevel,
}

// New логгер клиента. Stdout занят выводом команд, поэтому всё уходит в stderr.
// format json даёт production-кодировщик, остальное читаемый текст
func New(level, format string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if format == "json" {
		config = zap.NewProductionConfig()
	}

	lvl, ok := levels[level]
	if !ok {
		lvl = zap.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}

// AuditLog событие сессии: вход, выход, сброс пароля, решение по заявке.
// provider пустой для действий без провайдера
func AuditLog(log *zap.Logger, userID, action, provider, result string, metadata map[string]interface{}) {
	fields := make([]zap.Field, 0, 5+len(metadata))
	fields = append(fields,
		zap.String("user_id", userID),
		zap.String("action", action),
		zap.String("provider", provider),
		zap.String("result", result),
		zap.Time("timestamp", time.Now()),
	)
	for k, v := range metadata {
		fields = append(fields, zap.Any(k, v))
	}

	log.Info("audit_log", fields...)
}
