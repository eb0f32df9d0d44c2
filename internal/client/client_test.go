package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/xferctl/internal/checksum"
	"github.com/danmuck/xferctl/internal/cryptoutil"
	"github.com/danmuck/xferctl/internal/logging"
	"github.com/danmuck/xferctl/internal/protocol"
	"github.com/danmuck/xferctl/internal/protocol/frame"
	"github.com/danmuck/xferctl/internal/protocol/session"
	"github.com/danmuck/xferctl/internal/store"
	"github.com/danmuck/xferctl/internal/testutil/fakeserver"
	"github.com/danmuck/xferctl/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

var fixedID = protocol.ClientID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}

type fixture struct {
	dir   string
	file  string
	files store.Files
	cfg   session.Config
	deps  Deps
}

func newFixture(t *testing.T, host string, port int, content string) *fixture {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "payload.txt")
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	files := store.Files{
		TransferInfoPath: filepath.Join(dir, "transfer.info"),
		IdentityPath:     filepath.Join(dir, "me.info"),
		PrivateKeyPath:   filepath.Join(dir, "priv.key"),
	}
	info := fmt.Sprintf("%s\nalice\n%s\n", net.JoinHostPort(host, strconv.Itoa(port)), file)
	if err := os.WriteFile(files.TransferInfoPath, []byte(info), 0o600); err != nil {
		t.Fatalf("write transfer info: %v", err)
	}
	cfg := session.DefaultConfig()
	cfg.ConnectTimeout = 2 * time.Second
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	return &fixture{
		dir:   dir,
		file:  file,
		files: files,
		cfg:   cfg,
		deps:  Deps{Crypto: cryptoutil.NewSuite(), Checksum: checksum.Files{}, Storage: files},
	}
}

func startFixture(t *testing.T, handler fakeserver.Handler, content string) (*fakeserver.Server, *fixture) {
	t.Helper()
	srv := fakeserver.Start(t, handler)
	host, port := srv.HostPort()
	return srv, newFixture(t, host, port, content)
}

func (f *fixture) run(t *testing.T) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return Run(ctx, f.cfg, f.deps)
}

func expectCodes(t *testing.T, got []protocol.RequestCode, want ...protocol.RequestCode) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected request sequence:\n got: %v\nwant: %v", got, want)
	}
}

func expectKind(t *testing.T, res Result, kind Kind) *Error {
	t.Helper()
	if res.OK() {
		t.Fatalf("expected %s failure, run succeeded", kind)
	}
	var ce *Error
	if !errors.As(res.Err, &ce) {
		t.Fatalf("expected *Error, got %T: %v", res.Err, res.Err)
	}
	if ce.Kind != kind {
		t.Fatalf("expected kind %s, got %s: %v", kind, ce.Kind, ce)
	}
	return ce
}

func countCodes(codes []protocol.RequestCode, code protocol.RequestCode) int {
	n := 0
	for _, c := range codes {
		if c == code {
			n++
		}
	}
	return n
}

func TestRegisterAndTransferSucceeds(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	emu.AssignID = fixedID
	srv, f := startFixture(t, emu, "hello")

	res := f.run(t)
	srv.Close()
	if !res.OK() {
		t.Fatalf("run failed: %v", res.Err)
	}
	if res.Flow != FlowRegister || res.ClientID != fixedID || res.ExitCode() != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	expectCodes(t, srv.Codes(),
		protocol.RequestRegistration,
		protocol.RequestSendPublicKey,
		protocol.RequestSendFile,
		protocol.RequestCRCCorrect,
	)

	reqs := srv.Requests()
	if !reqs[0].ClientID.IsZero() {
		t.Fatalf("registration must carry a zero client id, got %s", reqs[0].ClientID)
	}
	if len(reqs[0].Payload) != protocol.NameFieldSize || protocol.ParseNameField(reqs[0].Payload) != "alice" {
		t.Fatalf("unexpected registration payload: %q", reqs[0].Payload)
	}
	for _, req := range reqs {
		if req.Version != protocol.Version {
			t.Fatalf("unexpected version %d on %s", req.Version, req.Code)
		}
	}
	for _, req := range reqs[1:] {
		if req.ClientID != fixedID {
			t.Fatalf("%s carried client id %s, want %s", req.Code, req.ClientID, fixedID)
		}
	}
	fc, err := protocol.ParseFilePayload(reqs[2].Payload, protocol.NameFieldSize)
	if err != nil {
		t.Fatalf("parse file payload: %v", err)
	}
	if fc.FileName != "payload.txt" {
		t.Fatalf("unexpected file name %q", fc.FileName)
	}
	if got := protocol.ParseNameField(reqs[3].Payload); got != "payload.txt" {
		t.Fatalf("unexpected crc status payload %q", got)
	}

	received := emu.Received()
	if len(received) != 1 || string(received[0]) != "hello" {
		t.Fatalf("server decrypted %q", received)
	}
	if len(res.Attempts) != 1 || res.Attempts[0].Outcome != session.OutcomeVerified {
		t.Fatalf("unexpected attempts: %+v", res.Attempts)
	}
	if res.Attempts[0].LocalChecksum != 3287646509 {
		t.Fatalf("unexpected local checksum %d", res.Attempts[0].LocalChecksum)
	}

	identity, ok, err := f.files.ReadIdentity()
	if err != nil || !ok {
		t.Fatalf("identity not persisted: ok=%v err=%v", ok, err)
	}
	if identity.Name != "alice" || identity.ClientID != fixedID || len(identity.PrivateKey) == 0 {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if _, err := os.Stat(f.files.PrivateKeyPath); err != nil {
		t.Fatalf("private key not persisted: %v", err)
	}
	if !emu.Known(fixedID) {
		t.Fatalf("server never received the public key for %s", fixedID)
	}
}

func TestReconnectUsesPersistedIdentity(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	srv, f := startFixture(t, emu, "hello")

	first := f.run(t)
	if !first.OK() || first.Flow != FlowRegister {
		t.Fatalf("first run: %+v", first)
	}
	second := f.run(t)
	srv.Close()
	if !second.OK() {
		t.Fatalf("second run failed: %v", second.Err)
	}
	if second.Flow != FlowReconnect || second.ClientID != first.ClientID {
		t.Fatalf("unexpected second result: %+v", second)
	}

	codes := srv.Codes()
	expectCodes(t, codes[4:],
		protocol.RequestReconnect,
		protocol.RequestSendFile,
		protocol.RequestCRCCorrect,
	)
	if reqs := srv.Requests(); reqs[4].ClientID != first.ClientID {
		t.Fatalf("reconnect carried %s, want %s", reqs[4].ClientID, first.ClientID)
	}
	if srv.Connections() != 2 {
		t.Fatalf("expected one connection per run, got %d", srv.Connections())
	}
	if received := emu.Received(); len(received) != 2 || string(received[1]) != "hello" {
		t.Fatalf("server decrypted %q", received)
	}
}

func TestReconnectRejectedFallsBackToRegisterOnce(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	emu.AssignID = fixedID
	srv, f := startFixture(t, emu, "hello")

	_, priv, err := cryptoutil.NewSuite().GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	stale := protocol.ClientID{0xaa, 0xbb}
	if err := f.files.WriteIdentity(store.Identity{Name: "alice", ClientID: stale, PrivateKey: priv}); err != nil {
		t.Fatalf("write identity: %v", err)
	}

	res := f.run(t)
	srv.Close()
	if !res.OK() {
		t.Fatalf("run failed: %v", res.Err)
	}
	if res.Flow != FlowReconnectRegister || res.ClientID != fixedID {
		t.Fatalf("unexpected result: %+v", res)
	}
	expectCodes(t, srv.Codes(),
		protocol.RequestReconnect,
		protocol.RequestRegistration,
		protocol.RequestSendPublicKey,
		protocol.RequestSendFile,
		protocol.RequestCRCCorrect,
	)
	reqs := srv.Requests()
	if reqs[0].ClientID != stale || !reqs[1].ClientID.IsZero() {
		t.Fatalf("unexpected ids: reconnect=%s register=%s", reqs[0].ClientID, reqs[1].ClientID)
	}
	if srv.Connections() != 1 {
		t.Fatalf("fallback must reuse the connection, got %d connections", srv.Connections())
	}
	identity, ok, err := f.files.ReadIdentity()
	if err != nil || !ok || identity.ClientID != fixedID {
		t.Fatalf("identity not replaced: %+v ok=%v err=%v", identity, ok, err)
	}
}

func TestFallbackRegistrationRejectedFails(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	emu.RejectReconnect = true
	emu.RejectRegistration = true
	srv, f := startFixture(t, emu, "hello")
	if err := f.files.WriteIdentity(store.Identity{Name: "alice", ClientID: fixedID, PrivateKey: []byte{1}}); err != nil {
		t.Fatalf("write identity: %v", err)
	}

	res := f.run(t)
	srv.Close()
	ce := expectKind(t, res, KindProtocol)
	if ce.Got != protocol.ResponseRegistrationFailed || ce.Want != protocol.ResponseRegistrationSuccess {
		t.Fatalf("unexpected codes on error: %v", ce)
	}
	expectCodes(t, srv.Codes(), protocol.RequestReconnect, protocol.RequestRegistration)
	if res.ExitCode() == 0 {
		t.Fatalf("failure must exit non-zero")
	}
}

func TestRegistrationRejectedIsProtocolFailure(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	emu.RejectRegistration = true
	srv, f := startFixture(t, emu, "hello")

	res := f.run(t)
	srv.Close()
	ce := expectKind(t, res, KindProtocol)
	if ce.State != StateRegistering || ce.Got != protocol.ResponseRegistrationFailed {
		t.Fatalf("unexpected error: %v", ce)
	}
	if _, ok, _ := f.files.ReadIdentity(); ok {
		t.Fatalf("identity must not be written after a rejected registration")
	}
}

func TestChecksumMismatchExhaustsRetries(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	emu.BadChecksums = 3
	srv, f := startFixture(t, emu, "hello")

	res := f.run(t)
	srv.Close()
	ce := expectKind(t, res, KindRetryExhausted)
	if ce.State != StateExhausted {
		t.Fatalf("unexpected state on error: %s", ce.State)
	}
	var cause *Error
	if !errors.As(ce.Inner, &cause) || cause.Kind != KindIntegrity {
		t.Fatalf("expected integrity mismatch as the cause, got %v", ce.Inner)
	}
	expectCodes(t, srv.Codes(),
		protocol.RequestRegistration,
		protocol.RequestSendPublicKey,
		protocol.RequestSendFile,
		protocol.RequestCRCIncorrectResend,
		protocol.RequestSendFile,
		protocol.RequestCRCIncorrectResend,
		protocol.RequestSendFile,
		protocol.RequestCRCIncorrectDone,
	)
	if len(res.Attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(res.Attempts))
	}
	for _, a := range res.Attempts {
		if a.Outcome != session.OutcomeMismatch || a.ServerChecksum == a.LocalChecksum {
			t.Fatalf("unexpected attempt: %+v", a)
		}
	}
}

func TestChecksumMismatchThenMatchSucceeds(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	emu.BadChecksums = 1
	srv, f := startFixture(t, emu, "hello")

	res := f.run(t)
	srv.Close()
	if !res.OK() {
		t.Fatalf("run failed: %v", res.Err)
	}
	codes := srv.Codes()
	expectCodes(t, codes[2:],
		protocol.RequestSendFile,
		protocol.RequestCRCIncorrectResend,
		protocol.RequestSendFile,
		protocol.RequestCRCCorrect,
	)
	if len(res.Attempts) != 2 || res.Attempts[1].Outcome != session.OutcomeVerified {
		t.Fatalf("unexpected attempts: %+v", res.Attempts)
	}
}

func TestUnexpectedCodeSpendsAnAttempt(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	emu.UnexpectedReplies = 1
	srv, f := startFixture(t, emu, "hello")

	res := f.run(t)
	srv.Close()
	if !res.OK() {
		t.Fatalf("run failed: %v", res.Err)
	}
	codes := srv.Codes()
	expectCodes(t, codes[2:],
		protocol.RequestSendFile,
		protocol.RequestSendFile,
		protocol.RequestCRCCorrect,
	)
	if res.Attempts[0].Outcome != session.OutcomeUnexpected || res.Attempts[0].Code != protocol.ResponseRegistrationFailed {
		t.Fatalf("unexpected first attempt: %+v", res.Attempts[0])
	}
}

func TestUnknownCodesExhaustRetries(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	emu.UnexpectedReplies = 3
	emu.UnexpectedCode = protocol.ResponseCode(9999)
	srv, f := startFixture(t, emu, "hello")

	res := f.run(t)
	srv.Close()
	expectKind(t, res, KindRetryExhausted)
	codes := srv.Codes()
	if n := countCodes(codes, protocol.RequestSendFile); n != 3 {
		t.Fatalf("expected 3 SEND_FILE, got %d", n)
	}
	if n := countCodes(codes, protocol.RequestCRCIncorrectResend); n != 0 {
		t.Fatalf("unknown codes must not trigger RESEND, got %d", n)
	}
	if n := countCodes(codes, protocol.RequestCRCIncorrectDone); n != 1 {
		t.Fatalf("expected exactly one DONE, got %d", n)
	}
}

func TestShortPayloadIsTransportFailure(t *testing.T) {
	testlog.Start(t)
	header := frame.EncodeResponseHeader(frame.ResponseHeader{
		Version:     protocol.Version,
		Code:        uint16(protocol.ResponseRegistrationSuccess),
		PayloadSize: 100,
	})
	raw := append(header, make([]byte, 60)...)
	srv, f := startFixture(t, fakeserver.HandlerFunc(func(req protocol.Request) fakeserver.Reply {
		return fakeserver.Reply{Raw: raw, Close: true}
	}), "hello")

	res := f.run(t)
	srv.Close()
	ce := expectKind(t, res, KindTransport)
	if ce.State != StateRegistering {
		t.Fatalf("unexpected state on error: %s", ce.State)
	}
	if !res.ClientID.IsZero() {
		t.Fatalf("short payload must not yield a client id")
	}
}

func TestSilentServerIsTimeout(t *testing.T) {
	testlog.Start(t)
	srv, f := startFixture(t, fakeserver.HandlerFunc(func(req protocol.Request) fakeserver.Reply {
		return fakeserver.Reply{}
	}), "hello")
	f.cfg.ReadTimeout = 150 * time.Millisecond

	res := f.run(t)
	srv.Close()
	expectKind(t, res, KindTimeout)
}

func TestMissingConfirmationStillSucceeds(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	emu.OmitConfirm = true
	srv, f := startFixture(t, emu, "hello")
	f.cfg.ReadTimeout = 300 * time.Millisecond

	res := f.run(t)
	srv.Close()
	if !res.OK() {
		t.Fatalf("run failed: %v", res.Err)
	}
}

func TestMissingTransferFileIsStorageFailure(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	srv, f := startFixture(t, emu, "hello")
	if err := os.Remove(f.file); err != nil {
		t.Fatalf("remove payload: %v", err)
	}

	res := f.run(t)
	srv.Close()
	ce := expectKind(t, res, KindStorage)
	if ce.State != StateFileTransferring {
		t.Fatalf("unexpected state on error: %s", ce.State)
	}
	expectCodes(t, srv.Codes(), protocol.RequestRegistration, protocol.RequestSendPublicKey)
}

func TestMissingTransferInfoNeverConnects(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	srv, f := startFixture(t, emu, "hello")
	if err := os.Remove(f.files.TransferInfoPath); err != nil {
		t.Fatalf("remove transfer info: %v", err)
	}

	res := f.run(t)
	srv.Close()
	expectKind(t, res, KindStorage)
	if res.Flow != FlowNone || srv.Connections() != 0 {
		t.Fatalf("unexpected flow=%s connections=%d", res.Flow, srv.Connections())
	}
}

func TestMalformedIdentityRegisters(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	srv, f := startFixture(t, emu, "hello")
	if err := os.WriteFile(f.files.IdentityPath, []byte("only-a-name\n"), 0o600); err != nil {
		t.Fatalf("write identity: %v", err)
	}

	res := f.run(t)
	srv.Close()
	if !res.OK() || res.Flow != FlowRegister {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestConnectFailureIsTransport(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	f := newFixture(t, "127.0.0.1", port, "hello")
	f.cfg.ConnectTimeout = 500 * time.Millisecond

	res := f.run(t)
	if res.OK() {
		t.Fatalf("expected connect failure")
	}
	if kind := KindOf(res.Err); kind != KindTransport && kind != KindTimeout {
		t.Fatalf("unexpected kind %s: %v", kind, res.Err)
	}
}

type keySpy struct {
	Crypto
	key []byte
}

func (k *keySpy) DecryptAsymmetric(ciphertext, privateKey []byte) ([]byte, error) {
	key, err := k.Crypto.DecryptAsymmetric(ciphertext, privateKey)
	k.key = key
	return key, err
}

func TestSymmetricKeyZeroedAfterEncryption(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	srv, f := startFixture(t, emu, "hello")
	spy := &keySpy{Crypto: f.deps.Crypto}
	f.deps.Crypto = spy

	res := f.run(t)
	srv.Close()
	if !res.OK() {
		t.Fatalf("run failed: %v", res.Err)
	}
	if len(spy.key) != cryptoutil.AESKeySize {
		t.Fatalf("unexpected key length %d", len(spy.key))
	}
	if !bytes.Equal(spy.key, make([]byte, cryptoutil.AESKeySize)) {
		t.Fatalf("symmetric key not zeroed")
	}
}

func TestNewSessionRejectsMissingDeps(t *testing.T) {
	testlog.Start(t)
	_, err := NewSession(session.DefaultConfig(), store.TransferInfo{}, Deps{})
	if !IsKind(err, KindConfig) || !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("expected config error, got %v", err)
	}
	cfg := session.DefaultConfig()
	cfg.MaxAttempts = -1
	f := newFixture(t, "127.0.0.1", 1, "hello")
	if _, err := NewSession(cfg, store.TransferInfo{}, f.deps); !IsKind(err, KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRegisterRequiresConnection(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, "127.0.0.1", 1, "hello")
	s, err := NewSession(f.cfg, store.TransferInfo{Host: "127.0.0.1", Port: 1, Name: "alice"}, f.deps)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Register(context.Background()); !IsKind(err, KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if s.State() != StateFailed {
		t.Fatalf("unexpected state %s", s.State())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

type panickingStorage struct {
	store.Files
}

func (panickingStorage) ReadFile(path string) ([]byte, error) {
	panic("disk on fire")
}

func TestCollaboratorPanicIsReportedAsFailure(t *testing.T) {
	testlog.Start(t)
	emu := fakeserver.NewEmulator()
	srv, f := startFixture(t, emu, "hello")
	f.deps.Storage = panickingStorage{Files: f.files}

	res := f.run(t)
	srv.Close()
	expectKind(t, res, KindInternal)
	if res.Flow != FlowRegister || res.Duration <= 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	expectCodes(t, srv.Codes(), protocol.RequestRegistration, protocol.RequestSendPublicKey)
}

func TestReconnectKeyUnwrapFailureEndsRun(t *testing.T) {
	testlog.Start(t)
	srv, f := startFixture(t, fakeserver.HandlerFunc(func(req protocol.Request) fakeserver.Reply {
		if req.Code != protocol.RequestReconnect {
			return fakeserver.Reply{Close: true}
		}
		payload := append(append([]byte(nil), req.ClientID[:]...), make([]byte, 128)...)
		return fakeserver.Reply{Responses: []protocol.Response{
			fakeserver.Respond(protocol.ResponseReconnectApprovedSendAES, payload),
		}}
	}), "hello")
	if err := f.files.WriteIdentity(store.Identity{Name: "alice", ClientID: fixedID, PrivateKey: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("write identity: %v", err)
	}

	res := f.run(t)
	srv.Close()
	ce := expectKind(t, res, KindCrypto)
	if ce.State != StateReconnecting || res.Flow != FlowReconnect {
		t.Fatalf("unexpected state=%s flow=%s", ce.State, res.Flow)
	}
	if len(res.Attempts) != 0 {
		t.Fatalf("no transfer attempt may follow a failed unwrap: %+v", res.Attempts)
	}
	expectCodes(t, srv.Codes(), protocol.RequestReconnect)
}

func TestReconnectUnexpectedCodeDoesNotFallBack(t *testing.T) {
	testlog.Start(t)
	srv, f := startFixture(t, fakeserver.HandlerFunc(func(req protocol.Request) fakeserver.Reply {
		return fakeserver.Reply{Responses: []protocol.Response{
			fakeserver.Respond(protocol.ResponseRegistrationFailed, nil),
		}}
	}), "hello")
	if err := f.files.WriteIdentity(store.Identity{Name: "alice", ClientID: fixedID, PrivateKey: []byte{1}}); err != nil {
		t.Fatalf("write identity: %v", err)
	}

	res := f.run(t)
	srv.Close()
	ce := expectKind(t, res, KindProtocol)
	if ce.Got != protocol.ResponseRegistrationFailed || ce.Want != protocol.ResponseReconnectApprovedSendAES {
		t.Fatalf("unexpected codes on error: %v", ce)
	}
	if res.Flow != FlowReconnect {
		t.Fatalf("unexpected flow %s", res.Flow)
	}
	expectCodes(t, srv.Codes(), protocol.RequestReconnect)
}

func TestFailureLogCarriesStateAndCodes(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	logging.Apply(logging.Config{Level: zerolog.DebugLevel, NoColor: true, Out: &buf})
	t.Cleanup(func() {
		logging.Apply(logging.Config{Level: zerolog.DebugLevel, NoColor: true, Out: os.Stderr})
	})

	err := unexpectedCode(StateRegistering, protocol.ResponseRegistrationFailed, protocol.ResponseRegistrationSuccess)
	logFailure(logging.New("client"), Result{Flow: FlowRegister, Err: err})

	out := buf.String()
	for _, want := range []string{
		"state=registering",
		"kind=protocol",
		"got=registration_failed(2101)",
		"want=registration_success(2100)",
		"flow=register",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("failure log missing %q: %q", want, out)
		}
	}
}
