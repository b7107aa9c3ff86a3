package lake

import (
	"encoding/binary"
	"fmt"
)

// magic identifies a ConfidenceLake file; version 1 is the only format
// this package writes or reads.
var magic = [8]byte{'V', 'C', 'P', 'L', 'A', 'K', 'E', 0}

const (
	headerVersion = 1
	saltLen       = 16

	offMagic       = 0
	offVersion     = 8
	offPageSize    = 12
	offWriteCursor = 16
	offNonceCtr    = 24
	offSalt        = 32
	headerSize     = offSalt + saltLen // 48 bytes, padded to a page by the caller
)

// header is the decoded form of the lake's first page.
type header struct {
	Version      uint32
	PageSize     uint32
	WriteCursor  uint64
	NonceCounter uint64
	Salt         [saltLen]byte
}

func encodeHeader(h header, pageSize int) []byte {
	buf := make([]byte, pageSize)
	copy(buf[offMagic:], magic[:])
	binary.LittleEndian.PutUint32(buf[offVersion:], h.Version)
	binary.LittleEndian.PutUint32(buf[offPageSize:], h.PageSize)
	binary.LittleEndian.PutUint64(buf[offWriteCursor:], h.WriteCursor)
	binary.LittleEndian.PutUint64(buf[offNonceCtr:], h.NonceCounter)
	copy(buf[offSalt:], h.Salt[:])
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("lake: header truncated (%d bytes)", len(buf))
	}
	var got [8]byte
	copy(got[:], buf[offMagic:offMagic+8])
	if got != magic {
		return header{}, fmt.Errorf("lake: bad magic %q", got)
	}
	version := binary.LittleEndian.Uint32(buf[offVersion:])
	if version != headerVersion {
		return header{}, fmt.Errorf("lake: unsupported version %d", version)
	}
	h := header{
		Version:      version,
		PageSize:     binary.LittleEndian.Uint32(buf[offPageSize:]),
		WriteCursor:  binary.LittleEndian.Uint64(buf[offWriteCursor:]),
		NonceCounter: binary.LittleEndian.Uint64(buf[offNonceCtr:]),
	}
	copy(h.Salt[:], buf[offSalt:offSalt+saltLen])
	return h, nil
}

// recordHeaderLen is the fixed-size prefix before a record's nonce and
// ciphertext: 8B timestamp + 4B plaintext_len + 4B ciphertext_len.
const recordHeaderLen = 8 + 4 + 4

// nonceLen is XChaCha20-Poly1305's extended nonce, substituting for
// spec.md §4.8's 12-byte AES-GCM-SIV nonce (see DESIGN.md for why).
const nonceLen = 24
