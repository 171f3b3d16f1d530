package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/wal"
)

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("get: %w", NewError(RetCKeyNotFound, "key foo not found"))
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected errors.Is to match by code")
	}
	if errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected errors.Is to not match a different code")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(RetCIoFailure, "append", cause)
	if !errors.Is(err, cause) {
		t.Errorf("Expected the cause to be reachable")
	}
	if got := err.Error(); got != "IoFailure: append: disk full" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err      error
		expected RetCode
	}{
		{nil, RetCSuccess},
		{ErrQueueClosed, RetCQueueClosed},
		{fmt.Errorf("wrapped: %w", ErrKeyNotFound), RetCKeyNotFound},
		{fmt.Errorf("%w: bad opcode", command.ErrInvalidCommand), RetCInvalidCommand},
		{fmt.Errorf("%w: short", db.ErrCorruptSnapshot), RetCCorruptRecord},
		{fmt.Errorf("replay: %w", wal.ErrCorruptRecord), RetCCorruptRecord},
		{errors.New("other"), RetCInternalError},
	}

	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.expected {
			t.Errorf("CodeOf(%v) = %s, expected %s", tt.err, got, tt.expected)
		}
	}
}

func TestParseRetCode(t *testing.T) {
	for c := RetCSuccess; c <= RetCQueueClosed; c++ {
		if parsed, ok := ParseRetCode(c.String()); !ok || parsed != c {
			t.Errorf("ParseRetCode(%q) = %v, %v", c.String(), parsed, ok)
		}
	}
	if _, ok := ParseRetCode("NoSuchCode"); ok {
		t.Errorf("Expected unknown code name to fail")
	}
}
