package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	mlerrors "github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

func TestTestLoggerLevels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelInfo)

	testLogger.Debug("hidden")
	testLogger.Info("info message", OperationKey, OperationFit, SamplesKey, 20)
	testLogger.Error("error message", fmt.Errorf("fold failed"), FoldKey, 3)

	if buffer.Len() == 0 {
		t.Fatal("Expected log output, got empty buffer")
	}
	if testLogger.ContainsMessage("hidden") {
		t.Error("Debug message should not appear when level is Info")
	}
	if !testLogger.ContainsField(OperationKey, OperationFit) {
		t.Error("operation field not found")
	}
	if !testLogger.ContainsField(SamplesKey, 20.0) {
		t.Error("samples field not found")
	}
	if !testLogger.ContainsField("error", "fold failed") {
		t.Error("leading error should be logged under 'error'")
	}
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	contextLogger := testLogger.With(ModelNameKey, "voting", RunIDKey, "run-1")
	contextLogger.Info("fold done", FoldKey, 1)

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0][ModelNameKey] != "voting" || entries[0][RunIDKey] != "run-1" {
		t.Errorf("context fields missing: %v", entries[0])
	}
}

func TestTestLoggerConcurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			testLogger.With(WorkerIDKey, id).Info("unit done")
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("interleaved output: %v", err)
	}
	if len(entries) != 16 {
		t.Errorf("expected 16 entries, got %d", len(entries))
	}
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProviderWithWriter(&buf, LevelInfo)
	logger := provider.GetLoggerWithName("GridSearch").With(ModelNameKey, "boosting")

	logger.Debug("not emitted")
	logger.Info("search finished", TrialsKey, 4, ScoreKey, 0.75)
	logger.Error("unit failed", mlerrors.NewDegenerateFoldError(2, "test", 1, "lr=0.1"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d: %s", len(lines), buf.String())
	}

	var info map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &info); err != nil {
		t.Fatal(err)
	}
	if info[ComponentKey] != "GridSearch" || info[ModelNameKey] != "boosting" {
		t.Errorf("missing context fields: %v", info)
	}
	if info[TrialsKey] != 4.0 {
		t.Errorf("trials = %v, want 4", info[TrialsKey])
	}

	var failure map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &failure); err != nil {
		t.Fatal(err)
	}
	detail, ok := failure[ErrorTypeKey].(map[string]interface{})
	if !ok || detail["type"] != "DegenerateFoldError" {
		t.Errorf("expected structured error detail, got %v", failure[ErrorTypeKey])
	}

	provider.SetLevel(LevelDebug)
	if !logger.Enabled(context.Background(), LevelDebug) {
		t.Error("SetLevel should apply to existing loggers")
	}
}

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ToLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if tt.wantErr && !mlerrors.IsInvalidConfiguration(err) {
				t.Errorf("expected InvalidConfigurationError, got %T", err)
			}
		})
	}
}

func TestWarningsRouteToProvider(t *testing.T) {
	provider, _ := NewTestLoggerProvider(LevelDebug)
	previous := GetProvider()
	SetProvider(provider)
	defer SetProvider(previous)

	mlerrors.Warn(mlerrors.NewConvergenceWarning("SVC", 50, ""))

	if !provider.Logger().ContainsMessage("SVC failed to converge") {
		t.Error("warning should be logged through the provider")
	}
	if !provider.Logger().ContainsField(ComponentKey, "warnings") {
		t.Error("warning should carry the warnings component")
	}
}
