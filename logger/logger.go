package logger

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger is kept only so Sync can flush on shutdown; components receive
// the SugaredLogger returned by InitLogger instead of reading a global.
var zapLogger *zap.Logger

// InitLogger builds the application logger, writing to packsync.log.
func InitLogger() *zap.SugaredLogger {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:          "T",
		LevelKey:         "L",
		NameKey:          "N",
		CallerKey:        "",
		FunctionKey:      zapcore.OmitKey,
		MessageKey:       "M",
		StacktraceKey:    "S",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration:   zapcore.SecondsDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: "  ",
	}

	logFile, err := os.OpenFile("packsync.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("can't open log file: %v", err)
	}
	fileWriter := zapcore.AddSync(logFile)

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		fileWriter,
		zap.InfoLevel,
	)

	zapLogger = zap.New(core)

	sugar := zapLogger.Sugar()
	sugar.Info("Logger initialized, logging to packsync.log")
	return sugar
}

// Sync flushes any buffered log entries. Called on shutdown from main.
func Sync() {
	if zapLogger != nil {
		_ = zapLogger.Sync()
	}
}
