package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// TestLoggerInterface tests the TestLogger implementation of Logger
func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", "operation", "test")
	testLogger.Warn("warning message", "warning_code", "TEST_WARNING")
	testLogger.Error("error message", fmt.Errorf("test error"), "error_code", "TEST_ERROR")

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField("key1", "value1") {
		t.Error("Expected field key1=value1 not found")
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrAttrKey, "test error") {
		t.Error("Expected leading error to be recorded")
	}
}

// TestLoggerWith tests the With method for context-aware logging
func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	stepLogger := testLogger.With(
		TubeKey, "tube_1",
		StepKey, "explain",
	)
	stepLogger.Info("technique published", TechniqueKey, "gini")

	if !testLogger.ContainsField(TubeKey, "tube_1") {
		t.Error("Tube context not found")
	}
	if !testLogger.ContainsField(StepKey, "explain") {
		t.Error("Step context not found")
	}
	if !testLogger.ContainsField(TechniqueKey, "gini") {
		t.Error("Technique field not found")
	}
}

// TestLoggerEnabled tests the Enabled method
func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	if !testLogger.Enabled(ctx, LevelInfo) {
		t.Error("Logger should be enabled for Info level")
	}
	if testLogger.Enabled(ctx, LevelDebug) {
		t.Error("Logger should not be enabled for Debug level")
	}

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")

	if testLogger.ContainsMessage("this should not appear") {
		t.Error("Debug message should not appear when level is Info")
	}
	if !testLogger.ContainsMessage("this should appear") {
		t.Error("Info message should appear when level is Info")
	}
}

func TestTestLoggerConcurrentWrites(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			testLogger.With(TubeKey, fmt.Sprintf("tube_%d", i)).Info("tube finished")
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != 8 {
		t.Errorf("Expected 8 entries, got %d", len(entries))
	}
}

func TestLoggerProviderIntegration(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)

	provider.GetLogger().Info("provider test message")
	provider.GetLoggerWithName("cookbook").Info("named logger message")

	lines := buffer.String()
	if !strings.Contains(lines, "provider test message") {
		t.Error("Provider test message not found")
	}
	if !provider.Logger().ContainsField(ComponentKey, "cookbook") {
		t.Error("Component name not found in named logger output")
	}
}

func TestZerologLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf)).With(StepKey, "measure")

	logger.Info("score computed", TechniqueKey, "accuracy", ScoreKey, 0.75)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output %q: %v", buf.String(), err)
	}
	if entry[StepKey] != "measure" {
		t.Errorf("%s = %v, want measure", StepKey, entry[StepKey])
	}
	if entry[TechniqueKey] != "accuracy" {
		t.Errorf("%s = %v, want accuracy", TechniqueKey, entry[TechniqueKey])
	}
	if entry[ScoreKey] != 0.75 {
		t.Errorf("%s = %v, want 0.75", ScoreKey, entry[ScoreKey])
	}
	if entry["message"] != "score computed" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestZerologLoggerErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))

	err := errors.NewUnknownTechniqueError("explain", "lime", nil)
	logger.Error("publish failed", err, StepKey, "explain")

	out := buf.String()
	for _, want := range []string{`"level":"error"`, `unknown technique \"lime\"`, `"error.detail":{`, `"type":"UnknownTechniqueError"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s does not contain %s", out, want)
		}
	}
}

func TestZerologLoggerEnabled(t *testing.T) {
	logger := NewZerologLogger(zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel))
	ctx := context.Background()

	if logger.Enabled(ctx, LevelInfo) {
		t.Error("Info should be disabled at warn level")
	}
	if !logger.Enabled(ctx, LevelError) {
		t.Error("Error should be enabled at warn level")
	}
}

func TestSetupLoggerRoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	if err := SetupLogger("debug", &buf); err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	defer errors.SetZerologWarnFunc(nil)

	errors.Warn(errors.NewConvergenceWarning("LogisticRegression", 100, ""))

	out := buf.String()
	if !strings.Contains(out, `"type":"ConvergenceWarning"`) {
		t.Errorf("expected structured warning, got %s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected warn level, got %s", out)
	}
}

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: "INFO", want: zerolog.InfoLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ToLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
