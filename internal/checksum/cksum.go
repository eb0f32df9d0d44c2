// Package checksum computes the POSIX cksum CRC-32 the server reports back
// after a file upload: polynomial 0x04C11DB7, MSB first, with the content
// length folded in and the result complemented.
package checksum

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

const poly = 0x04C11DB7

var table = makeTable()

func makeTable() [256]uint32 {
	var t [256]uint32
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Digest accumulates the checksum over streamed input.
type Digest struct {
	crc uint32
	n   uint64
}

func (d *Digest) Write(p []byte) (int, error) {
	crc := d.crc
	for _, b := range p {
		crc = crc<<8 ^ table[byte(crc>>24)^b]
	}
	d.crc = crc
	d.n += uint64(len(p))
	return len(p), nil
}

// Sum32 returns the checksum of everything written so far.
func (d *Digest) Sum32() uint32 {
	crc := d.crc
	for n := d.n; n != 0; n >>= 8 {
		crc = crc<<8 ^ table[byte(crc>>24)^byte(n)]
	}
	return ^crc
}

// Bytes returns the checksum of b.
func Bytes(b []byte) uint32 {
	var d Digest
	_, _ = d.Write(b)
	return d.Sum32()
}

// Reader returns the checksum of everything r yields.
func Reader(r io.Reader) (uint32, error) {
	var d Digest
	if _, err := io.Copy(&d, bufio.NewReader(r)); err != nil {
		return 0, err
	}
	return d.Sum32(), nil
}

// File returns the checksum of the file at path.
func File(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("checksum: open %s: %w", path, err)
	}
	defer f.Close()
	sum, err := Reader(f)
	if err != nil {
		return 0, fmt.Errorf("checksum: read %s: %w", path, err)
	}
	return sum, nil
}

// Files satisfies the client's checksum collaborator over the filesystem.
type Files struct{}

func (Files) ChecksumFile(path string) (uint32, error) {
	return File(path)
}
