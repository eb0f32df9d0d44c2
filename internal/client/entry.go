package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/xferctl/internal/logging"
	"github.com/danmuck/xferctl/internal/observability"
	"github.com/danmuck/xferctl/internal/protocol"
	"github.com/danmuck/xferctl/internal/protocol/session"
)

// Outcome is the terminal result of a run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Flow names the path a run took.
type Flow string

const (
	FlowNone              Flow = "none"
	FlowRegister          Flow = "register"
	FlowReconnect         Flow = "reconnect"
	FlowReconnectRegister Flow = "reconnect_register"
)

// Result summarizes one run.
type Result struct {
	Outcome  Outcome
	Flow     Flow
	ClientID protocol.ClientID
	Attempts []session.Attempt
	Duration time.Duration
	Err      error
}

func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

// ExitCode maps the outcome to a process exit status.
func (r Result) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Run performs one complete transfer. A persisted identity selects the
// reconnect flow; a missing or unreadable one selects registration. The
// connection is closed on every exit path and a panicking collaborator is
// reported as a failed run.
func Run(ctx context.Context, cfg session.Config, deps Deps) (res Result) {
	log := logging.New("client")
	start := time.Now()
	res.Flow = FlowNone

	defer func() {
		if r := recover(); r != nil {
			res.Err = newError(KindInternal, StateFailed, "recovered panic", fmt.Errorf("%v", r))
		}
		res.Duration = time.Since(start)
		res.Outcome = OutcomeFailure
		if res.Err == nil {
			res.Outcome = OutcomeSuccess
			log.Infof("transfer succeeded flow=%s client_id=%s attempts=%d in %s",
				res.Flow, res.ClientID, len(res.Attempts), res.Duration.Round(time.Millisecond))
		} else {
			logFailure(log, res)
		}
		observability.RecordOutcome(string(res.Outcome), string(res.Flow), res.Duration)
	}()

	res.Err = execute(ctx, cfg, deps, log, &res)
	return res
}

func execute(ctx context.Context, cfg session.Config, deps Deps, log logging.Logger, res *Result) error {
	if err := deps.validate(); err != nil {
		return newError(KindConfig, StateDisconnected, "invalid dependencies", err)
	}
	info, err := deps.Storage.ReadTransferInfo()
	if err != nil {
		return newError(KindStorage, StateDisconnected, "read transfer info", err)
	}
	identity, haveIdentity, err := deps.Storage.ReadIdentity()
	if err != nil {
		log.Warnf("ignoring unreadable identity, registering instead: %v", err)
		haveIdentity = false
	}

	s, err := NewSession(cfg, info, deps)
	if err != nil {
		return err
	}
	defer s.Close()
	defer func() {
		res.ClientID = s.ClientID()
		res.Attempts = s.Attempts()
		if s.FellBack() {
			res.Flow = FlowReconnectRegister
		}
	}()

	if err := s.Connect(ctx); err != nil {
		return err
	}
	if haveIdentity {
		res.Flow = FlowReconnect
		return s.Reconnect(ctx, identity)
	}
	res.Flow = FlowRegister
	return s.Register(ctx)
}

func logFailure(log logging.Logger, res Result) {
	var ce *Error
	if !errors.As(res.Err, &ce) {
		log.Errorf("transfer failed flow=%s: %v", res.Flow, res.Err)
		return
	}
	fields := map[string]any{
		"flow":     string(res.Flow),
		"kind":     ce.Kind.String(),
		"state":    ce.State.String(),
		"attempts": len(res.Attempts),
	}
	if ce.Got != 0 || ce.Want != 0 {
		fields["got"] = ce.Got.String()
		fields["want"] = ce.Want.String()
	}
	log.WithFields(fields).Errorf("transfer failed: %v", ce)
}
