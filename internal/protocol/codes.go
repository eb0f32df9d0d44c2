package protocol

import "fmt"

// RequestCode identifies a client->server request.
type RequestCode uint16

const (
	RequestRegistration       RequestCode = 1025
	RequestSendPublicKey      RequestCode = 1026
	RequestReconnect          RequestCode = 1027
	RequestSendFile           RequestCode = 1028
	RequestCRCCorrect         RequestCode = 1029
	RequestCRCIncorrectResend RequestCode = 1030
	RequestCRCIncorrectDone   RequestCode = 1031
)

// ResponseCode identifies a server->client response.
type ResponseCode uint16

const (
	ResponseRegistrationSuccess      ResponseCode = 2100
	ResponseRegistrationFailed       ResponseCode = 2101
	ResponsePublicKeyReceivedSendAES ResponseCode = 2102
	ResponseFileReceivedCRCOK        ResponseCode = 2103
	ResponseConfirmReceipt           ResponseCode = 2104
	ResponseReconnectApprovedSendAES ResponseCode = 2105
	ResponseReconnectRejected        ResponseCode = 2106
)

var requestNames = map[RequestCode]string{
	RequestRegistration:       "registration",
	RequestSendPublicKey:      "send_public_key",
	RequestReconnect:          "reconnect",
	RequestSendFile:           "send_file",
	RequestCRCCorrect:         "crc_correct",
	RequestCRCIncorrectResend: "crc_incorrect_resend",
	RequestCRCIncorrectDone:   "crc_incorrect_done",
}

var responseNames = map[ResponseCode]string{
	ResponseRegistrationSuccess:      "registration_success",
	ResponseRegistrationFailed:       "registration_failed",
	ResponsePublicKeyReceivedSendAES: "public_key_received_send_aes",
	ResponseFileReceivedCRCOK:        "file_received_crc_ok",
	ResponseConfirmReceipt:           "confirm_receipt",
	ResponseReconnectApprovedSendAES: "reconnect_approved_send_aes",
	ResponseReconnectRejected:        "reconnect_rejected",
}

// Valid reports whether c is one of the enumerated request codes.
func (c RequestCode) Valid() bool {
	_, ok := requestNames[c]
	return ok
}

func (c RequestCode) String() string {
	if name, ok := requestNames[c]; ok {
		return fmt.Sprintf("%s(%d)", name, uint16(c))
	}
	return fmt.Sprintf("unknown(%d)", uint16(c))
}

// Valid reports whether c is one of the enumerated response codes. Codes
// outside the set are protocol violations and must never be accepted.
func (c ResponseCode) Valid() bool {
	_, ok := responseNames[c]
	return ok
}

func (c ResponseCode) String() string {
	if name, ok := responseNames[c]; ok {
		return fmt.Sprintf("%s(%d)", name, uint16(c))
	}
	return fmt.Sprintf("unknown(%d)", uint16(c))
}
