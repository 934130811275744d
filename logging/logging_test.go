package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Director = filepath.Join(t.TempDir(), "logs")
	cfg.LogInTerminal = false
	return cfg
}

func TestNewLogger_LevelsAndFormatting(t *testing.T) {
	logger := NewLogger(testConfig(t))
	defer logger.Sync()

	logger.Info("hello")
	logger.Infof("hello %s", "world")
	child := logger.With(zap.String("k", "v")).WithError(errors.New("boom")).Named("child")
	child.Warn("warned")

	if logger.Zap() == nil || logger.Sugar() == nil {
		t.Fatal("expected non-nil zap/sugar accessors")
	}
}

func TestFactory_GetLoggerCachesByName(t *testing.T) {
	f := NewFactory(testConfig(t))

	a := f.GetLogger("greeter")
	b := f.GetLogger("greeter")
	c := f.GetLogger("metrics")

	if a != b {
		t.Fatal("expected GetLogger to return the same cached Logger for the same name")
	}
	if a == c {
		t.Fatal("expected distinct names to produce distinct loggers")
	}
}

func TestGlobal_DefaultsThenSetGlobal(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	Init(testConfig(t))
	Info("via package-level Info")

	custom := NewLogger(testConfig(t)).Named("custom")
	SetGlobal(custom)
	if Global() != custom {
		t.Fatal("expected SetGlobal to replace the global logger")
	}
}

func TestWithContext_ExtractsTraceAndSpan(t *testing.T) {
	logger := NewLogger(testConfig(t))

	ctx := SetTraceID(context.Background(), "trace-1")
	ctx = SetSpanID(ctx, "span-1")

	if got := GetTraceID(ctx); got != "trace-1" {
		t.Fatalf("GetTraceID = %q, want trace-1", got)
	}
	if got := GetSpanID(ctx); got != "span-1" {
		t.Fatalf("GetSpanID = %q, want span-1", got)
	}

	tagged := WithContext(logger, ctx)
	tagged.Info("tagged")

	ctx = ToContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected FromContext to round-trip the stored Logger")
	}
	if FromContext(context.Background()) != Global() {
		t.Fatal("expected FromContext to fall back to Global() when unset")
	}
}

func TestWithHooks_RunsHookAndPreservesName(t *testing.T) {
	logger := NewLogger(testConfig(t)).Named("kernel")

	var calls int32
	hooked := WithHooks(logger, func(entry zapcore.Entry) error {
		atomic.AddInt32(&calls, 1)
		if entry.LoggerName != "kernel" {
			t.Errorf("entry.LoggerName = %q, want kernel", entry.LoggerName)
		}
		return nil
	})

	hooked.Error("something broke")

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("hook called %d times, want 1", calls)
	}
}

func TestWithHooks_ErroringHookDoesNotBlockWrite(t *testing.T) {
	logger := NewLogger(testConfig(t))
	hooked := WithHooks(logger,
		func(zapcore.Entry) error { return errors.New("hook failed") },
		func(zapcore.Entry) error { return nil },
	)
	hooked.Info("still writes")
}

func TestWithHooks_NoHooksReturnsSameLogger(t *testing.T) {
	logger := NewLogger(testConfig(t))
	if WithHooks(logger) != logger {
		t.Fatal("expected WithHooks with no hooks to return the original Logger")
	}
}

func TestFromZap_WrapsExistingLogger(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&buf), zapcore.InfoLevel)
	zl := zap.New(core)

	logger := FromZap(zl)
	logger.Info("wrapped")

	if buf.Len() == 0 {
		t.Fatal("expected FromZap-wrapped logger to write through to the underlying core")
	}
}

func TestLevelWriter_WritesUnderConfiguredDirectory(t *testing.T) {
	cfg := testConfig(t)
	logger := NewLogger(cfg)
	logger.Error("on disk")
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	entries, err := os.ReadDir(cfg.Director)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", cfg.Director, err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one dated subdirectory under Director")
	}
}
