//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package log is the leveled logger of the workflow engine. It wraps a zap
// SugaredLogger whose level and encoding follow the log section of the
// configuration.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log level constants
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

// Log format constants.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Default is the logger of the workflow packages. It may be replaced by any
// Logger implementation; With only adds fields to a zap backed Default.
var Default Logger = newZapLogger(FormatConsole, os.Stdout)

// SetLevel sets the log level to the specified level.
// Valid levels are: "debug", "info", "warn", "error", "fatal"
func SetLevel(level string) {
	zapLevel.SetLevel(parseLevel(level))
}

// SetFormat rebuilds Default with the given encoder format writing to w.
// Unknown formats fall back to the console encoder.
func SetFormat(format string, w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	Default = newZapLogger(format, w)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func newZapLogger(format string, w io.Writer) *zap.SugaredLogger {
	var encoder zapcore.Encoder
	if format == FormatJSON {
		cfg := encoderConfig
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zap.New(
		zapcore.NewCore(encoder, zapcore.AddSync(w), zapLevel),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	).Sugar()
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalColorLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Logger defines the logging interface used throughout trpc-workflow-go.
// Arguments of the plain methods are handled in the manner of fmt.Print,
// those of the f variants in the manner of fmt.Printf.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}

// With returns a logger that adds the alternating key value pairs to every
// entry, such as the run and node a message belongs to. A Default that is
// not backed by zap is returned unchanged.
func With(keysAndValues ...any) Logger {
	if s, ok := Default.(*zap.SugaredLogger); ok {
		return s.With(keysAndValues...)
	}
	return Default
}

// Field keys attached by With in the workflow packages.
const (
	KeyRun      = "run"
	KeyNode     = "node"
	KeyNodeType = "node_type"
)

// Debugf logs to DEBUG log.
func Debugf(format string, args ...any) { Default.Debugf(format, args...) }

// Infof logs to INFO log.
func Infof(format string, args ...any) { Default.Infof(format, args...) }

// Warnf logs to WARNING log.
func Warnf(format string, args ...any) { Default.Warnf(format, args...) }

// Errorf logs to ERROR log.
func Errorf(format string, args ...any) { Default.Errorf(format, args...) }

// Fatalf logs to FATAL log and exits.
func Fatalf(format string, args ...any) { Default.Fatalf(format, args...) }
