package log_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meikuraledutech/storygraph/log"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) add(level string, args ...any) {
	r.lines = append(r.lines, level+" "+fmt.Sprint(args...))
}

func (r *recordingLogger) Debug(args ...any)            { r.add("debug", args...) }
func (r *recordingLogger) Debugf(f string, args ...any) { r.add("debug", fmt.Sprintf(f, args...)) }
func (r *recordingLogger) Info(args ...any)             { r.add("info", args...) }
func (r *recordingLogger) Infof(f string, args ...any)  { r.add("info", fmt.Sprintf(f, args...)) }
func (r *recordingLogger) Warn(args ...any)             { r.add("warn", args...) }
func (r *recordingLogger) Warnf(f string, args ...any)  { r.add("warn", fmt.Sprintf(f, args...)) }
func (r *recordingLogger) Error(args ...any)            { r.add("error", args...) }
func (r *recordingLogger) Errorf(f string, args ...any) { r.add("error", fmt.Sprintf(f, args...)) }
func (r *recordingLogger) Fatalf(f string, args ...any) { r.add("fatal", fmt.Sprintf(f, args...)) }

func TestHelpersDelegateToDefault(t *testing.T) {
	original := log.Default
	defer func() { log.Default = original }()

	rec := &recordingLogger{}
	log.Default = rec

	log.Debugf("node %s", "a")
	log.Info("started")
	log.Warnf("stale %d", 2)
	log.Errorf("failed: %v", "boom")

	assert.Equal(t, []string{"debug node a", "info started", "warn stale 2", "error failed: boom"}, rec.lines)
}

func TestSetLevel(t *testing.T) {
	defer log.SetLevel(log.LevelInfo)

	tests := []struct {
		in   string
		want string
	}{
		{log.LevelDebug, "debug"},
		{log.LevelWarn, "warn"},
		{log.LevelError, "error"},
		{"verbose", "info"},
	}
	for _, tt := range tests {
		log.SetLevel(tt.in)
		assert.Equal(t, tt.want, log.Level(), tt.in)
	}
}
