package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// NameField returns a width-byte slot holding name, truncated to width-1
// bytes and null padded so the slot always ends in at least one zero byte.
func NameField(name string, width int) ([]byte, error) {
	if width < 1 {
		return nil, fmt.Errorf("%w: %d", ErrFieldTooSmall, width)
	}
	buf := make([]byte, width)
	n := len(name)
	if n > width-1 {
		n = width - 1
	}
	copy(buf, name[:n])
	return buf, nil
}

// ParseNameField returns the text before the first zero byte.
func ParseNameField(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// RegistrationPayload is the name slot sent with REGISTRATION and RECONNECT.
func RegistrationPayload(name string, width int) ([]byte, error) {
	return NameField(name, width)
}

// PublicKeyPayload is name slot | public key bytes.
func PublicKeyPayload(name string, width int, publicKey []byte) ([]byte, error) {
	slot, err := NameField(name, width)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(slot)+len(publicKey))
	buf = append(buf, slot...)
	buf = append(buf, publicKey...)
	return buf, nil
}

// FilePayload is contentLength(4) | file name slot | content.
func FilePayload(fileName string, width int, content []byte) ([]byte, error) {
	if uint64(len(content)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrContentTooLarge, len(content))
	}
	slot, err := NameField(fileName, width)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, ContentLenSize, ContentLenSize+len(slot)+len(content))
	binary.BigEndian.PutUint32(buf, uint32(len(content)))
	buf = append(buf, slot...)
	buf = append(buf, content...)
	return buf, nil
}

// FileContent is the decoded form of a FilePayload.
type FileContent struct {
	FileName string
	Content  []byte
}

// ParseFilePayload splits a FilePayload built with the same slot width.
func ParseFilePayload(b []byte, width int) (FileContent, error) {
	if len(b) < ContentLenSize+width {
		return FileContent{}, fmt.Errorf("%w: file payload %d bytes", ErrShortPayload, len(b))
	}
	size := binary.BigEndian.Uint32(b[:ContentLenSize])
	rest := b[ContentLenSize+width:]
	if uint64(len(rest)) != uint64(size) {
		return FileContent{}, fmt.Errorf("%w: content declared=%d got=%d", ErrTruncated, size, len(rest))
	}
	content := make([]byte, len(rest))
	copy(content, rest)
	return FileContent{
		FileName: ParseNameField(b[ContentLenSize : ContentLenSize+width]),
		Content:  content,
	}, nil
}

// AssignedClientID reads the id from a REGISTRATION_SUCCESS payload.
func AssignedClientID(resp Response) (ClientID, error) {
	if len(resp.Payload) < ClientIDSize {
		return ClientID{}, fmt.Errorf("%w: code=%s %d bytes", ErrShortPayload, resp.Code, len(resp.Payload))
	}
	return ClientIDFromBytes(resp.Payload)
}

// EncryptedKey splits a key-delivery payload into the echoed client id and the
// asymmetrically encrypted symmetric key.
func EncryptedKey(resp Response) (ClientID, []byte, error) {
	if len(resp.Payload) <= ClientIDSize {
		return ClientID{}, nil, fmt.Errorf("%w: code=%s %d bytes", ErrShortPayload, resp.Code, len(resp.Payload))
	}
	id, err := ClientIDFromBytes(resp.Payload)
	if err != nil {
		return ClientID{}, nil, err
	}
	key := make([]byte, len(resp.Payload)-ClientIDSize)
	copy(key, resp.Payload[ClientIDSize:])
	return id, key, nil
}

// TrailingChecksum reads the checksum carried in the last 4 payload bytes.
func TrailingChecksum(resp Response) (uint32, error) {
	if len(resp.Payload) < ChecksumSize {
		return 0, fmt.Errorf("%w: code=%s %d bytes", ErrShortPayload, resp.Code, len(resp.Payload))
	}
	return binary.BigEndian.Uint32(resp.Payload[len(resp.Payload)-ChecksumSize:]), nil
}

// ChecksumPayload builds the FILE_RECEIVED_CRC_OK payload:
// clientId | contentSize(4) | file name slot | checksum(4).
func ChecksumPayload(id ClientID, contentSize uint32, fileName string, width int, sum uint32) ([]byte, error) {
	slot, err := NameField(fileName, width)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, ClientIDSize+ContentLenSize+len(slot)+ChecksumSize)
	buf = append(buf, id[:]...)
	buf = binary.BigEndian.AppendUint32(buf, contentSize)
	buf = append(buf, slot...)
	buf = binary.BigEndian.AppendUint32(buf, sum)
	return buf, nil
}
