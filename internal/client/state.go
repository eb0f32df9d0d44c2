package client

// State is the session's position in the protocol.
type State uint8

const (
	StateDisconnected State = iota
	StateConnected
	StateRegistering
	StateReconnecting
	StateKeyExchangePending
	StateFileTransferring
	StateVerified
	StateExhausted
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{
	StateDisconnected:       "disconnected",
	StateConnected:          "connected",
	StateRegistering:        "registering",
	StateReconnecting:       "reconnecting",
	StateKeyExchangePending: "key_exchange_pending",
	StateFileTransferring:   "file_transferring",
	StateVerified:           "verified",
	StateExhausted:          "exhausted",
	StateSucceeded:          "succeeded",
	StateFailed:             "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
