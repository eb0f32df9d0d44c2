package session

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/xferctl/internal/protocol"
	"github.com/danmuck/xferctl/internal/testutil/testlog"
)

func TestDefaultConfigMatchesProtocol(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	if cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected max attempts: %d", cfg.MaxAttempts)
	}
	if cfg.NameFieldSize != protocol.NameFieldSize || cfg.FileNameFieldSize != protocol.NameFieldSize {
		t.Fatalf("unexpected field sizes: %+v", cfg)
	}
	if cfg.Version != protocol.Version {
		t.Fatalf("unexpected version: %d", cfg.Version)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestWithDefaultsKeepsOverrides(t *testing.T) {
	testlog.Start(t)
	cfg := Config{MaxAttempts: 5, ReadTimeout: time.Second}.WithDefaults()
	if cfg.MaxAttempts != 5 || cfg.ReadTimeout != time.Second {
		t.Fatalf("override lost: %+v", cfg)
	}
	if cfg.WriteTimeout != DefaultConfig().WriteTimeout || cfg.Limits.MaxPayloadBytes == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	tc := cfg.Transport()
	if tc.ReadTimeout != time.Second || tc.ConnectTimeout != DefaultConfig().ConnectTimeout {
		t.Fatalf("unexpected transport config: %+v", tc)
	}
}

func TestValidate(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.MaxAttempts = -1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidMaxAttempts) {
		t.Fatalf("expected ErrInvalidMaxAttempts, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.NameFieldSize = 1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidFieldSize) {
		t.Fatalf("expected ErrInvalidFieldSize, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.ReadTimeout = -time.Second
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
		t.Fatalf("expected ErrInvalidTimeout, got %v", err)
	}
}

func TestAttemptLogLifecycle(t *testing.T) {
	testlog.Start(t)
	var l AttemptLog
	now := time.Unix(1700000000, 0)
	n := l.Begin(now)
	if n != 1 || l.Len() != 1 {
		t.Fatalf("unexpected attempt number=%d len=%d", n, l.Len())
	}
	l.RecordChecksums(n, 10, 11)
	item, ok := l.Finish(n, now.Add(time.Second), protocol.ResponseFileReceivedCRCOK, OutcomeMismatch, " crc ")
	if !ok {
		t.Fatalf("missing attempt")
	}
	if item.Outcome != OutcomeMismatch || item.LastError != "crc" || item.ServerChecksum != 10 || item.LocalChecksum != 11 {
		t.Fatalf("unexpected attempt: %+v", item)
	}
	if _, ok := l.Finish(9, now, 0, OutcomeFailed, ""); ok {
		t.Fatalf("unknown attempt should be ignored")
	}
	second := l.Begin(now.Add(2 * time.Second))
	last, ok := l.Last()
	if !ok || last.Number != second || last.Outcome != OutcomePending {
		t.Fatalf("unexpected last attempt: %+v", last)
	}
	list := l.List()
	list[0].Outcome = OutcomeVerified
	if first := l.List()[0]; first.Outcome != OutcomeMismatch {
		t.Fatalf("List must return a copy")
	}
}
