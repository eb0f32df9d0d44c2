package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/xferctl/internal/logging"
	"github.com/danmuck/xferctl/internal/observability"
	"github.com/danmuck/xferctl/internal/protocol"
	"github.com/danmuck/xferctl/internal/protocol/frame"
	"github.com/danmuck/xferctl/internal/protocol/session"
	"github.com/danmuck/xferctl/internal/store"
	"github.com/danmuck/xferctl/internal/transport"
)

var ErrMissingDependency = errors.New("client: missing dependency")

// Crypto is the cryptographic surface the session needs.
type Crypto interface {
	GenerateKeyPair() (publicKey, privateKey []byte, err error)
	DecryptAsymmetric(ciphertext, privateKey []byte) ([]byte, error)
	EncryptSymmetric(plaintext, key []byte) ([]byte, error)
}

// Checksummer computes the local checksum compared against the server's.
type Checksummer interface {
	ChecksumFile(path string) (uint32, error)
}

// Storage reads and persists client state between runs.
type Storage interface {
	ReadTransferInfo() (store.TransferInfo, error)
	ReadIdentity() (store.Identity, bool, error)
	WriteIdentity(id store.Identity) error
	WritePrivateKey(privateKey []byte) error
	ReadFile(path string) ([]byte, error)
}

// Deps bundles the collaborators a Session is driven with.
type Deps struct {
	Crypto   Crypto
	Checksum Checksummer
	Storage  Storage
}

func (d Deps) validate() error {
	switch {
	case d.Crypto == nil:
		return fmt.Errorf("%w: crypto", ErrMissingDependency)
	case d.Checksum == nil:
		return fmt.Errorf("%w: checksum", ErrMissingDependency)
	case d.Storage == nil:
		return fmt.Errorf("%w: storage", ErrMissingDependency)
	}
	return nil
}

// Session drives one run of the protocol over a single connection. A Session
// is not safe for concurrent use.
type Session struct {
	cfg  session.Config
	info store.TransferInfo
	deps Deps
	log  logging.Logger

	conn  *transport.Conn
	state State

	clientID   protocol.ClientID
	privateKey []byte
	aesKey     []byte
	fellBack   bool
	attempts   session.AttemptLog
}

// NewSession validates cfg and deps. It does not connect.
func NewSession(cfg session.Config, info store.TransferInfo, deps Deps) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, newError(KindConfig, StateDisconnected, "invalid session config", err)
	}
	if err := deps.validate(); err != nil {
		return nil, newError(KindConfig, StateDisconnected, "invalid dependencies", err)
	}
	return &Session{
		cfg:   cfg,
		info:  info,
		deps:  deps,
		log:   logging.New("session").With("server", info.Address()),
		state: StateDisconnected,
	}, nil
}

func (s *Session) State() State                { return s.state }
func (s *Session) ClientID() protocol.ClientID { return s.clientID }
func (s *Session) FellBack() bool              { return s.fellBack }
func (s *Session) Attempts() []session.Attempt { return s.attempts.List() }

// Connect opens the stream to the server named in the transfer info.
func (s *Session) Connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	conn, err := transport.Dial(ctx, s.info.Address(), s.cfg.Transport())
	if err != nil {
		return s.fail(transportError(s.state, "connect", err))
	}
	s.conn = conn
	s.enter(StateConnected)
	s.log.Infof("connected to %s", conn.RemoteAddr())
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	clear(s.aesKey)
	s.aesKey = nil
	return s.conn.Close()
}

func (s *Session) enter(next State) {
	if s.state == next {
		return
	}
	s.log.Debugf("state %s -> %s", s.state, next)
	s.state = next
}

// fail moves the session to StateFailed and returns err unchanged.
func (s *Session) fail(err *Error) error {
	s.enter(StateFailed)
	return err
}

func (s *Session) requireConn() error {
	if s.conn == nil {
		return s.fail(newError(KindTransport, s.state, "not connected", transport.ErrClosed))
	}
	return nil
}

func (s *Session) send(ctx context.Context, id protocol.ClientID, code protocol.RequestCode, payload []byte) error {
	req := protocol.NewRequest(id, s.cfg.Version, code, payload)
	buf, err := protocol.EncodeRequest(req)
	if err != nil {
		return s.fail(newError(KindProtocol, s.state, "encode "+code.String(), err))
	}
	if err := s.conn.SendAll(ctx, buf); err != nil {
		return s.fail(transportError(s.state, "send "+code.String(), err))
	}
	observability.RecordFrameSent(code.String())
	s.log.Debugf("sent %s payload=%d", code, len(req.Payload))
	return nil
}

func (s *Session) receive(ctx context.Context) (protocol.Response, error) {
	resp, err := s.readResponse(ctx)
	if err != nil {
		return protocol.Response{}, s.fail(err)
	}
	return resp, nil
}

// readResponse reads one response frame without changing session state.
func (s *Session) readResponse(ctx context.Context) (protocol.Response, *Error) {
	header, err := s.conn.RecvExact(ctx, frame.ResponseHeaderLen)
	if err != nil {
		return protocol.Response{}, transportError(s.state, "read response header", err)
	}
	h, err := frame.DecodeResponseHeader(header)
	if err != nil {
		return protocol.Response{}, newError(KindProtocol, s.state, "decode response header", err)
	}
	if err := s.cfg.Limits.Check(h.PayloadSize); err != nil {
		return protocol.Response{}, newError(KindProtocol, s.state, "response payload", err)
	}
	payload, err := s.conn.RecvExact(ctx, int(h.PayloadSize))
	if err != nil {
		return protocol.Response{}, transportError(s.state, "read response payload", err)
	}
	resp, err := protocol.DecodeResponse(header, payload)
	if err != nil {
		return protocol.Response{}, newError(KindProtocol, s.state, "decode response", err)
	}
	observability.RecordFrameReceived(resp.Code.String())
	s.log.Debugf("received %s payload=%d", resp.Code, resp.PayloadSize)
	return resp, nil
}

// rejected logs a server refusal and fails the session.
func (s *Session) rejected(resp protocol.Response, want protocol.ResponseCode) error {
	err := unexpectedCode(s.state, resp.Code, want)
	if resp.Code.Valid() {
		s.log.ServerErrorf("%s during %s (want %s)", resp.Code, s.state, want)
	} else {
		s.log.Errorf("protocol violation: response code %d during %s", uint16(resp.Code), s.state)
	}
	return s.fail(err)
}

// Register runs the full registration flow: REGISTRATION, key exchange,
// key unwrap and file transfer. The request always carries a zero client id.
func (s *Session) Register(ctx context.Context) error {
	if err := s.requireConn(); err != nil {
		return err
	}
	s.enter(StateRegistering)
	payload, err := protocol.RegistrationPayload(s.info.Name, s.cfg.NameFieldSize)
	if err != nil {
		return s.fail(newError(KindProtocol, s.state, "registration payload", err))
	}
	if err := s.send(ctx, protocol.ClientID{}, protocol.RequestRegistration, payload); err != nil {
		return err
	}
	resp, err := s.receive(ctx)
	if err != nil {
		return err
	}
	if resp.Code != protocol.ResponseRegistrationSuccess {
		return s.rejected(resp, protocol.ResponseRegistrationSuccess)
	}
	id, err := protocol.AssignedClientID(resp)
	if err != nil {
		return s.fail(newError(KindProtocol, s.state, "registration payload", err))
	}
	s.clientID = id
	s.log.Infof("registered as %q client_id=%s", s.info.Name, id)

	encKey, err := s.exchangeKeys(ctx)
	if err != nil {
		return err
	}
	return s.deliver(ctx, encKey)
}

// Reconnect presents a persisted identity. A RECONNECT_REJECTED reply falls
// back to Register exactly once on the same connection.
func (s *Session) Reconnect(ctx context.Context, id store.Identity) error {
	if err := s.requireConn(); err != nil {
		return err
	}
	s.enter(StateReconnecting)
	if id.Name != "" && id.Name != s.info.Name {
		s.log.Warnf("identity name %q differs from transfer info name %q", id.Name, s.info.Name)
	}
	payload, err := protocol.RegistrationPayload(s.info.Name, s.cfg.NameFieldSize)
	if err != nil {
		return s.fail(newError(KindProtocol, s.state, "reconnect payload", err))
	}
	s.clientID = id.ClientID
	if err := s.send(ctx, id.ClientID, protocol.RequestReconnect, payload); err != nil {
		return err
	}
	resp, err := s.receive(ctx)
	if err != nil {
		return err
	}
	switch resp.Code {
	case protocol.ResponseReconnectApprovedSendAES:
		echo, encKey, err := protocol.EncryptedKey(resp)
		if err != nil {
			return s.fail(newError(KindProtocol, s.state, "reconnect payload", err))
		}
		if echo != id.ClientID {
			s.log.Warnf("server echoed client_id=%s, persisted %s", echo, id.ClientID)
		}
		s.privateKey = id.PrivateKey
		s.log.Infof("reconnected client_id=%s", id.ClientID)
		return s.deliver(ctx, encKey)
	case protocol.ResponseReconnectRejected:
		if s.fellBack {
			return s.rejected(resp, protocol.ResponseReconnectApprovedSendAES)
		}
		s.fellBack = true
		s.log.ServerErrorf("reconnect rejected for client_id=%s, registering", id.ClientID)
		s.clientID = protocol.ClientID{}
		return s.Register(ctx)
	default:
		return s.rejected(resp, protocol.ResponseReconnectApprovedSendAES)
	}
}

// exchangeKeys generates a keypair, persists it with the assigned id, sends
// the public key and returns the wrapped symmetric key.
func (s *Session) exchangeKeys(ctx context.Context) ([]byte, error) {
	s.enter(StateKeyExchangePending)
	pub, priv, err := s.deps.Crypto.GenerateKeyPair()
	if err != nil {
		return nil, s.fail(newError(KindCrypto, s.state, "generate keypair", err))
	}
	s.privateKey = priv
	if err := s.deps.Storage.WritePrivateKey(priv); err != nil {
		return nil, s.fail(newError(KindStorage, s.state, "persist private key", err))
	}
	identity := store.Identity{Name: s.info.Name, ClientID: s.clientID, PrivateKey: priv}
	if err := s.deps.Storage.WriteIdentity(identity); err != nil {
		return nil, s.fail(newError(KindStorage, s.state, "persist identity", err))
	}

	payload, err := protocol.PublicKeyPayload(s.info.Name, s.cfg.NameFieldSize, pub)
	if err != nil {
		return nil, s.fail(newError(KindProtocol, s.state, "public key payload", err))
	}
	if err := s.send(ctx, s.clientID, protocol.RequestSendPublicKey, payload); err != nil {
		return nil, err
	}
	resp, err := s.receive(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Code != protocol.ResponsePublicKeyReceivedSendAES {
		return nil, s.rejected(resp, protocol.ResponsePublicKeyReceivedSendAES)
	}
	echo, encKey, err := protocol.EncryptedKey(resp)
	if err != nil {
		return nil, s.fail(newError(KindProtocol, s.state, "key delivery payload", err))
	}
	if echo != s.clientID {
		s.log.Warnf("server echoed client_id=%s, assigned %s", echo, s.clientID)
	}
	return encKey, nil
}

// deliver unwraps the symmetric key and runs the transfer loop.
func (s *Session) deliver(ctx context.Context, encKey []byte) error {
	key, err := s.deps.Crypto.DecryptAsymmetric(encKey, s.privateKey)
	if err != nil {
		return s.fail(newError(KindCrypto, s.state, "unwrap symmetric key", err))
	}
	s.aesKey = key
	return s.transferFile(ctx)
}

func (s *Session) finishAttempt(n int, code protocol.ResponseCode, outcome session.AttemptOutcome, lastErr string) {
	s.attempts.Finish(n, time.Now(), code, outcome, lastErr)
}
