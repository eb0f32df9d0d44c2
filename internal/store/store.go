// Package store reads and writes the client's on-disk state:
//
//   - transfer.info: "host:port", client name, file path (one per line)
//   - me.info: client name, hex client id, base64 private key (one per line)
//   - priv.key: base64 private key
package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danmuck/xferctl/internal/cryptoutil"
	"github.com/danmuck/xferctl/internal/protocol"
)

const (
	DefaultTransferInfoPath = "transfer.info"
	DefaultIdentityPath     = "me.info"
	DefaultPrivateKeyPath   = "priv.key"
)

var (
	ErrMalformedTransferInfo = errors.New("store: malformed transfer info")
	ErrMalformedIdentity     = errors.New("store: malformed identity")
)

// TransferInfo is loaded once per run and not changed afterwards.
type TransferInfo struct {
	Host     string
	Port     int
	Name     string
	FilePath string
}

func (t TransferInfo) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Identity is the persisted result of a successful registration.
type Identity struct {
	Name       string
	ClientID   protocol.ClientID
	PrivateKey []byte
}

// Files is the filesystem-backed store.
type Files struct {
	TransferInfoPath string
	IdentityPath     string
	PrivateKeyPath   string
}

func DefaultFiles() Files {
	return Files{
		TransferInfoPath: DefaultTransferInfoPath,
		IdentityPath:     DefaultIdentityPath,
		PrivateKeyPath:   DefaultPrivateKeyPath,
	}
}

func (f Files) ReadTransferInfo() (TransferInfo, error) {
	file, err := os.Open(f.TransferInfoPath)
	if err != nil {
		return TransferInfo{}, fmt.Errorf("store: open transfer info: %w", err)
	}
	defer file.Close()
	info, err := ParseTransferInfo(file)
	if err != nil {
		return TransferInfo{}, fmt.Errorf("%s: %w", f.TransferInfoPath, err)
	}
	return info, nil
}

// ReadIdentity reports ok=false without error when no identity was ever
// written.
func (f Files) ReadIdentity() (Identity, bool, error) {
	file, err := os.Open(f.IdentityPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, fmt.Errorf("store: open identity: %w", err)
	}
	defer file.Close()
	id, err := ParseIdentity(file)
	if err != nil {
		return Identity{}, false, fmt.Errorf("%s: %w", f.IdentityPath, err)
	}
	return id, true, nil
}

func (f Files) WriteIdentity(id Identity) error {
	return writeFile(f.IdentityPath, []byte(FormatIdentity(id)))
}

func (f Files) WritePrivateKey(privateKey []byte) error {
	return writeFile(f.PrivateKeyPath, []byte(cryptoutil.EncodeBase64(privateKey)+"\n"))
}

func (f Files) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read file: %w", err)
	}
	return data, nil
}

// ParseTransferInfo reads the three-line transfer.info format.
func ParseTransferInfo(r io.Reader) (TransferInfo, error) {
	lines, err := readLines(r, 3)
	if err != nil {
		return TransferInfo{}, err
	}
	if len(lines) < 3 {
		return TransferInfo{}, fmt.Errorf("%w: expected 3 lines, got %d", ErrMalformedTransferInfo, len(lines))
	}
	host, portRaw, err := net.SplitHostPort(lines[0])
	if err != nil {
		return TransferInfo{}, fmt.Errorf("%w: address %q: %v", ErrMalformedTransferInfo, lines[0], err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil || port <= 0 || port > 65535 {
		return TransferInfo{}, fmt.Errorf("%w: port %q", ErrMalformedTransferInfo, portRaw)
	}
	if host == "" {
		return TransferInfo{}, fmt.Errorf("%w: empty host", ErrMalformedTransferInfo)
	}
	if lines[1] == "" {
		return TransferInfo{}, fmt.Errorf("%w: empty client name", ErrMalformedTransferInfo)
	}
	if lines[2] == "" {
		return TransferInfo{}, fmt.Errorf("%w: empty file path", ErrMalformedTransferInfo)
	}
	return TransferInfo{Host: host, Port: port, Name: lines[1], FilePath: lines[2]}, nil
}

// ParseIdentity reads the three-line me.info format.
func ParseIdentity(r io.Reader) (Identity, error) {
	lines, err := readLines(r, 3)
	if err != nil {
		return Identity{}, err
	}
	if len(lines) < 3 {
		return Identity{}, fmt.Errorf("%w: expected 3 lines, got %d", ErrMalformedIdentity, len(lines))
	}
	if lines[0] == "" {
		return Identity{}, fmt.Errorf("%w: empty name", ErrMalformedIdentity)
	}
	id, err := protocol.ParseClientID(lines[1])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformedIdentity, err)
	}
	key, err := cryptoutil.DecodeBase64(lines[2])
	if err != nil || len(key) == 0 {
		return Identity{}, fmt.Errorf("%w: private key is not base64", ErrMalformedIdentity)
	}
	return Identity{Name: lines[0], ClientID: id, PrivateKey: key}, nil
}

func FormatIdentity(id Identity) string {
	var b strings.Builder
	b.WriteString(id.Name)
	b.WriteByte('\n')
	b.WriteString(id.ClientID.Hex())
	b.WriteByte('\n')
	b.WriteString(cryptoutil.EncodeBase64(id.PrivateKey))
	b.WriteByte('\n')
	return b.String()
}

func readLines(r io.Reader, limit int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	lines := make([]string, 0, limit)
	for len(lines) < limit && scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("store: read lines: %w", err)
	}
	return lines, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	return nil
}
