package session

import (
	"strings"
	"time"

	"github.com/danmuck/xferctl/internal/protocol"
)

// AttemptOutcome is the result of one file send.
type AttemptOutcome string

const (
	OutcomePending    AttemptOutcome = "pending"
	OutcomeVerified   AttemptOutcome = "verified"
	OutcomeMismatch   AttemptOutcome = "crc_mismatch"
	OutcomeUnexpected AttemptOutcome = "unexpected_code"
	OutcomeFailed     AttemptOutcome = "failed"
)

// Attempt tracks one SEND_FILE round trip.
type Attempt struct {
	Number         int
	SentAt         time.Time
	FinishedAt     time.Time
	Code           protocol.ResponseCode
	ServerChecksum uint32
	LocalChecksum  uint32
	Outcome        AttemptOutcome
	LastError      string
}

// AttemptLog records the bounded file-transfer loop in order. It is owned by
// a single session and is not safe for concurrent use.
type AttemptLog struct {
	items []Attempt
}

// Begin opens attempt n+1 and returns its number.
func (l *AttemptLog) Begin(at time.Time) int {
	n := len(l.items) + 1
	l.items = append(l.items, Attempt{Number: n, SentAt: at, Outcome: OutcomePending})
	return n
}

// Finish closes attempt n. Unknown numbers are ignored.
func (l *AttemptLog) Finish(n int, at time.Time, code protocol.ResponseCode, outcome AttemptOutcome, lastErr string) (Attempt, bool) {
	if n < 1 || n > len(l.items) {
		return Attempt{}, false
	}
	item := l.items[n-1]
	item.FinishedAt = at
	item.Code = code
	item.Outcome = outcome
	item.LastError = strings.TrimSpace(lastErr)
	l.items[n-1] = item
	return item, true
}

// RecordChecksums stores both sides of a CRC comparison on attempt n.
func (l *AttemptLog) RecordChecksums(n int, server, local uint32) {
	if n < 1 || n > len(l.items) {
		return
	}
	l.items[n-1].ServerChecksum = server
	l.items[n-1].LocalChecksum = local
}

func (l *AttemptLog) Len() int {
	return len(l.items)
}

func (l *AttemptLog) Last() (Attempt, bool) {
	if len(l.items) == 0 {
		return Attempt{}, false
	}
	return l.items[len(l.items)-1], true
}

func (l *AttemptLog) List() []Attempt {
	out := make([]Attempt, len(l.items))
	copy(out, l.items)
	return out
}
