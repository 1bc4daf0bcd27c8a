//
// Tencent is pleased to support the open source community by making trpc-graph-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-graph-go is licensed under the Apache License Version 2.0.
//
//

package log

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{LevelDebug, zapcore.DebugLevel},
		{LevelInfo, zapcore.InfoLevel},
		{LevelWarn, zapcore.WarnLevel},
		{LevelError, zapcore.ErrorLevel},
		{LevelFatal, zapcore.FatalLevel},
		{"unknown", zapcore.InfoLevel},
	}
	for _, c := range cases {
		SetLevel(c.level)
		assert.Equal(t, c.want, zapLevel.Level(), "level %q", c.level)
	}
}

type recordingLogger struct {
	messages []string
}

func (r *recordingLogger) record(args ...any) {
	r.messages = append(r.messages, fmt.Sprint(args...))
}

func (r *recordingLogger) recordf(format string, args ...any) {
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func (r *recordingLogger) Debug(args ...any)                 { r.record(args...) }
func (r *recordingLogger) Debugf(format string, args ...any) { r.recordf(format, args...) }
func (r *recordingLogger) Info(args ...any)                  { r.record(args...) }
func (r *recordingLogger) Infof(format string, args ...any)  { r.recordf(format, args...) }
func (r *recordingLogger) Warn(args ...any)                  { r.record(args...) }
func (r *recordingLogger) Warnf(format string, args ...any)  { r.recordf(format, args...) }
func (r *recordingLogger) Error(args ...any)                 { r.record(args...) }
func (r *recordingLogger) Errorf(format string, args ...any) { r.recordf(format, args...) }
func (r *recordingLogger) Fatal(args ...any)                 { r.record(args...) }
func (r *recordingLogger) Fatalf(format string, args ...any) { r.recordf(format, args...) }

func TestPackageFuncsForwardToDefault(t *testing.T) {
	recorder := &recordingLogger{}
	original := Default
	Default = recorder
	defer func() { Default = original }()

	Debug("d")
	Debugf("d%d", 1)
	Info("i")
	Infof("i%d", 1)
	Warn("w")
	Warnf("w%d", 1)
	Error("e")
	Errorf("e%d", 1)

	assert.Equal(t, []string{"d", "d1", "i", "i1", "w", "w1", "e", "e1"}, recorder.messages)
}
