package fakeserver

import (
	"crypto/rand"
	"sync"

	"github.com/danmuck/xferctl/internal/checksum"
	"github.com/danmuck/xferctl/internal/cryptoutil"
	"github.com/danmuck/xferctl/internal/protocol"
	"github.com/google/uuid"
)

// Emulator is a Handler that behaves like a real transfer server: it assigns
// ids, wraps its symmetric key for each client's public key, decrypts files
// and answers with their checksum. The exported knobs inject faults and must
// be set before the server starts.
type Emulator struct {
	Crypto    cryptoutil.Suite
	NameWidth int
	AESKey    []byte

	// AssignID is handed out on registration; a zero value draws a new uuid.
	AssignID protocol.ClientID

	RejectRegistration bool
	RejectReconnect    bool
	OmitConfirm        bool

	// BadChecksums corrupts that many FILE_RECEIVED_CRC_OK checksums.
	BadChecksums int
	// UnexpectedReplies answers that many SEND_FILE requests with
	// UnexpectedCode instead of a checksum.
	UnexpectedReplies int
	UnexpectedCode    protocol.ResponseCode

	mu       sync.Mutex
	keys     map[protocol.ClientID][]byte
	received [][]byte
}

func NewEmulator() *Emulator {
	key := make([]byte, cryptoutil.AESKeySize)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return &Emulator{
		Crypto:         cryptoutil.NewSuite(),
		NameWidth:      protocol.NameFieldSize,
		AESKey:         key,
		UnexpectedCode: protocol.ResponseRegistrationFailed,
		keys:           make(map[protocol.ClientID][]byte),
	}
}

// Received returns the decrypted file contents in arrival order.
func (e *Emulator) Received() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.received))
	copy(out, e.received)
	return out
}

// Known reports whether id has completed key exchange.
func (e *Emulator) Known(id protocol.ClientID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.keys[id]) > 0
}

func (e *Emulator) Handle(req protocol.Request) Reply {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch req.Code {
	case protocol.RequestRegistration:
		if e.RejectRegistration {
			return reply(Respond(protocol.ResponseRegistrationFailed, nil))
		}
		id := e.AssignID
		if id.IsZero() {
			id = protocol.ClientID(uuid.New())
		}
		e.keys[id] = nil
		return reply(Respond(protocol.ResponseRegistrationSuccess, id[:]))

	case protocol.RequestSendPublicKey:
		if len(req.Payload) <= e.NameWidth {
			return Reply{Close: true}
		}
		pub := append([]byte(nil), req.Payload[e.NameWidth:]...)
		e.keys[req.ClientID] = pub
		return e.deliverKey(protocol.ResponsePublicKeyReceivedSendAES, req.ClientID, pub)

	case protocol.RequestReconnect:
		pub := e.keys[req.ClientID]
		if e.RejectReconnect || len(pub) == 0 {
			return reply(Respond(protocol.ResponseReconnectRejected, req.ClientID[:]))
		}
		return e.deliverKey(protocol.ResponseReconnectApprovedSendAES, req.ClientID, pub)

	case protocol.RequestSendFile:
		if e.UnexpectedReplies > 0 {
			e.UnexpectedReplies--
			return reply(Respond(e.UnexpectedCode, nil))
		}
		fc, err := protocol.ParseFilePayload(req.Payload, e.NameWidth)
		if err != nil {
			return Reply{Close: true}
		}
		var sum uint32
		plain, err := e.Crypto.DecryptSymmetric(fc.Content, e.AESKey)
		if err == nil {
			e.received = append(e.received, plain)
			sum = checksum.Bytes(plain)
		}
		if e.BadChecksums > 0 {
			e.BadChecksums--
			sum = ^sum
		}
		payload, err := protocol.ChecksumPayload(req.ClientID, uint32(len(fc.Content)), fc.FileName, e.NameWidth, sum)
		if err != nil {
			return Reply{Close: true}
		}
		return reply(Respond(protocol.ResponseFileReceivedCRCOK, payload))

	case protocol.RequestCRCCorrect, protocol.RequestCRCIncorrectDone:
		if e.OmitConfirm {
			return Reply{}
		}
		return reply(Respond(protocol.ResponseConfirmReceipt, req.ClientID[:]))

	case protocol.RequestCRCIncorrectResend:
		return Reply{}
	}
	return Reply{Close: true}
}

func (e *Emulator) deliverKey(code protocol.ResponseCode, id protocol.ClientID, pub []byte) Reply {
	wrapped, err := e.Crypto.EncryptAsymmetric(e.AESKey, pub)
	if err != nil {
		return Reply{Close: true}
	}
	payload := append(append([]byte(nil), id[:]...), wrapped...)
	return reply(Respond(code, payload))
}

func reply(responses ...protocol.Response) Reply {
	return Reply{Responses: responses}
}
