package utils_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/subfine/subfine/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReadAllLimitUnderLimit(t *testing.T) {
	t.Parallel()

	data, err := utils.ReadAllLimit(strings.NewReader("hello"), 10)
	if err != nil {
		t.Fatalf("ReadAllLimit() unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("data = %q, want hello", data)
	}
}

func TestReadAllLimitExactLimit(t *testing.T) {
	t.Parallel()

	data, err := utils.ReadAllLimit(strings.NewReader("hello"), 5)
	if err != nil {
		t.Fatalf("ReadAllLimit() unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("data = %q, want hello", data)
	}
}

func TestReadAllLimitOverLimit(t *testing.T) {
	t.Parallel()

	data, err := utils.ReadAllLimit(strings.NewReader("hello"), 4)
	if !errors.Is(err, utils.ErrIOLimitReached) {
		t.Fatalf("err = %v, want ErrIOLimitReached", err)
	}
	if string(data) != "hell" {
		t.Errorf("data = %q, want the truncated read", data)
	}
}

func TestLogContextFieldsAccumulate(t *testing.T) {
	t.Parallel()

	ctx := utils.LogContext(context.Background(), zap.String("a", "1"))
	ctx = utils.LogContext(ctx, zap.Int("b", 2))

	fields := utils.GetLogContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if fields[0].Key != "a" || fields[1].Key != "b" {
		t.Errorf("field keys = %q, %q, want a, b", fields[0].Key, fields[1].Key)
	}
}

func TestGetLogContextFieldsEmpty(t *testing.T) {
	t.Parallel()

	if fields := utils.GetLogContextFields(context.Background()); fields != nil {
		t.Errorf("fields = %v, want nil", fields)
	}
}

func TestLogContextWith(t *testing.T) {
	t.Parallel()

	ctx, log := utils.LogContextWith(context.Background(), zap.NewNop(), zap.String("input_file", "a.mp4"))
	if log == nil {
		t.Fatal("logger is nil")
	}
	fields := utils.GetLogContextFields(ctx)
	if len(fields) != 1 || fields[0].Key != "input_file" {
		t.Errorf("fields = %v, want input_file", fields)
	}
}

func TestPanicRecovery(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	log := zap.New(core)

	func() {
		defer utils.PanicRecovery(log)
		panic("boom")
	}()

	if logs.FilterMessage("recovered panic").Len() != 1 {
		t.Error("expected a recovered panic log entry")
	}
}
