package client

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/danmuck/xferctl/internal/observability"
	"github.com/danmuck/xferctl/internal/protocol"
	"github.com/danmuck/xferctl/internal/protocol/session"
)

// transferFile encrypts the file once and sends it up to MaxAttempts times
// until the server's checksum matches the local one.
//
// Per attempt:
// - FILE_RECEIVED_CRC_OK with a match: CRC_CORRECT, then success
// - mismatch before the last attempt: CRC_INCORRECT_RESEND, no reply awaited
// - any other code: the attempt is spent and the loop continues
//
// When every attempt is spent, CRC_INCORRECT_DONE is sent exactly once.
func (s *Session) transferFile(ctx context.Context) error {
	s.enter(StateFileTransferring)
	path := s.info.FilePath
	plaintext, err := s.deps.Storage.ReadFile(path)
	if err != nil {
		return s.fail(newError(KindStorage, s.state, "read transfer file", err))
	}
	ciphertext, err := s.deps.Crypto.EncryptSymmetric(plaintext, s.aesKey)
	clear(s.aesKey)
	s.aesKey = nil
	if err != nil {
		return s.fail(newError(KindCrypto, s.state, "encrypt transfer file", err))
	}

	fileName := filepath.Base(path)
	filePayload, err := protocol.FilePayload(fileName, s.cfg.FileNameFieldSize, ciphertext)
	if err != nil {
		return s.fail(newError(KindProtocol, s.state, "file payload", err))
	}
	statusPayload, err := protocol.NameField(fileName, s.cfg.FileNameFieldSize)
	if err != nil {
		return s.fail(newError(KindProtocol, s.state, "status payload", err))
	}

	var (
		localSum  uint32
		haveLocal bool
		mismatch  *Error
	)
	limit := s.cfg.MaxAttempts
	for attempt := 1; attempt <= limit; attempt++ {
		n := s.attempts.Begin(time.Now())
		observability.RecordTransferAttempt()
		s.log.Infof("sending %s attempt %d/%d (%d bytes encrypted)", fileName, attempt, limit, len(ciphertext))

		if err := s.send(ctx, s.clientID, protocol.RequestSendFile, filePayload); err != nil {
			s.finishAttempt(n, 0, session.OutcomeFailed, err.Error())
			return err
		}
		resp, err := s.receive(ctx)
		if err != nil {
			s.finishAttempt(n, 0, session.OutcomeFailed, err.Error())
			return err
		}

		if resp.Code != protocol.ResponseFileReceivedCRCOK {
			if resp.Code.Valid() {
				s.log.Warnf("unexpected %s on attempt %d/%d (want %s)", resp.Code, attempt, limit, protocol.ResponseFileReceivedCRCOK)
			} else {
				s.log.Errorf("protocol violation: response code %d on attempt %d/%d", uint16(resp.Code), attempt, limit)
			}
			s.finishAttempt(n, resp.Code, session.OutcomeUnexpected, unexpectedCode(s.state, resp.Code, protocol.ResponseFileReceivedCRCOK).Error())
			continue
		}

		serverSum, err := protocol.TrailingChecksum(resp)
		if err != nil {
			s.log.Warnf("attempt %d/%d: %v", attempt, limit, err)
			s.finishAttempt(n, resp.Code, session.OutcomeUnexpected, err.Error())
			continue
		}
		if !haveLocal {
			localSum, err = s.deps.Checksum.ChecksumFile(path)
			if err != nil {
				s.finishAttempt(n, resp.Code, session.OutcomeFailed, err.Error())
				return s.fail(newError(KindStorage, s.state, "checksum transfer file", err))
			}
			haveLocal = true
		}
		s.attempts.RecordChecksums(n, serverSum, localSum)

		if serverSum == localSum {
			s.finishAttempt(n, resp.Code, session.OutcomeVerified, "")
			s.enter(StateVerified)
			s.log.Infof("checksum verified on attempt %d/%d crc=%d", attempt, limit, localSum)
			if err := s.send(ctx, s.clientID, protocol.RequestCRCCorrect, statusPayload); err != nil {
				return err
			}
			s.awaitConfirm(ctx, protocol.RequestCRCCorrect)
			s.enter(StateSucceeded)
			return nil
		}

		mismatch = newError(KindIntegrity, s.state,
			fmt.Sprintf("checksum mismatch server=%d local=%d", serverSum, localSum), nil)
		s.finishAttempt(n, resp.Code, session.OutcomeMismatch, mismatch.Msg)
		s.log.Warnf("checksum mismatch on attempt %d/%d server=%d local=%d", attempt, limit, serverSum, localSum)
		if attempt < limit {
			if err := s.send(ctx, s.clientID, protocol.RequestCRCIncorrectResend, statusPayload); err != nil {
				return err
			}
		}
	}

	s.enter(StateExhausted)
	if err := s.send(ctx, s.clientID, protocol.RequestCRCIncorrectDone, statusPayload); err != nil {
		return err
	}
	s.awaitConfirm(ctx, protocol.RequestCRCIncorrectDone)
	exhausted := newError(KindRetryExhausted, StateExhausted,
		fmt.Sprintf("no verified checksum after %d attempts", limit), nil)
	if mismatch != nil {
		exhausted.Inner = mismatch
	}
	return s.fail(exhausted)
}

// awaitConfirm reads the server's CONFIRM_RECEIPT. The outcome is already
// decided, so a missing or wrong reply is only logged.
func (s *Session) awaitConfirm(ctx context.Context, after protocol.RequestCode) {
	if !s.cfg.AwaitConfirm {
		return
	}
	resp, err := s.readResponse(ctx)
	if err != nil {
		s.log.Warnf("no confirmation after %s: %v", after, err)
		return
	}
	if resp.Code != protocol.ResponseConfirmReceipt {
		s.log.Warnf("got %s after %s (want %s)", resp.Code, after, protocol.ResponseConfirmReceipt)
		return
	}
	s.log.Debugf("server confirmed %s", after)
}
