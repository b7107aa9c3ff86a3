// Package lake implements ConfidenceLake: an encrypted, append-only,
// memory-mapped record store admitting only high-signal outputs.
package lake

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/fluxcore/engine/internal/elp"
	"github.com/fluxcore/engine/internal/fluxerr"
)

// DefaultPageSize is spec.md §6's default page size.
const DefaultPageSize = 4096

// DefaultAdmitThreshold is spec.md §6's default admission threshold.
const DefaultAdmitThreshold = 0.6

// Record is the plaintext payload one Put call admits: a geometric
// inference result, independent of the orchestrator's own Output type
// so this package has no dependency on it.
type Record struct {
	TimestampMs  uint64
	Position     int
	ELP          elp.ELP
	Signal       float32
	Confidence   float32
	Mode         string
	Hallucinated bool
}

// Lake owns the memory-mapped file.
type Lake struct {
	mu   sync.Mutex // serializes Put; readers never take this lock
	f    *os.File
	data []byte

	pageSize       int
	admitThreshold float32
	key            []byte
	salt           [saltLen]byte

	cursor       atomic.Uint64
	nonceCounter atomic.Uint64

	idx *Index // optional secondary timestamp index; nil disables it
}

// Options configures Open.
type Options struct {
	Path           string
	Secret         string // operator-supplied key material
	PageSize       int    // default DefaultPageSize
	AdmitThreshold float32
	IndexPath      string // sqlite secondary index path; empty disables it
	InitialPages   int    // pages to pre-allocate on create; default 256
}

// Open creates or opens a lake file at opts.Path.
func Open(opts Options) (*Lake, error) {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.AdmitThreshold == 0 {
		opts.AdmitThreshold = DefaultAdmitThreshold
	}
	if opts.InitialPages == 0 {
		opts.InitialPages = 256
	}

	f, err := os.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("lake: open %s: %w", opts.Path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("lake: stat: %w", err)
	}

	var h header
	if stat.Size() == 0 {
		salt := [saltLen]byte{}
		if _, err := rand.Read(salt[:]); err != nil {
			f.Close()
			return nil, fmt.Errorf("lake: generate salt: %w", err)
		}
		h = header{
			Version:     headerVersion,
			PageSize:    uint32(opts.PageSize),
			WriteCursor: uint64(opts.PageSize),
			Salt:        salt,
		}
		size := int64(opts.PageSize) * int64(opts.InitialPages)
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("lake: truncate: %w", err)
		}
		if _, err := f.WriteAt(encodeHeader(h, opts.PageSize), 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("lake: write header: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("lake: sync header: %w", err)
		}
		stat, _ = f.Stat()
	} else {
		hdrBuf := make([]byte, opts.PageSize)
		if _, err := f.ReadAt(hdrBuf, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("lake: read header: %w", err)
		}
		h, err = decodeHeader(hdrBuf)
		if err != nil {
			f.Close()
			return nil, err
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(stat.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("lake: mmap: %w", err)
	}

	l := &Lake{
		f:              f,
		data:           data,
		pageSize:       int(h.PageSize),
		admitThreshold: opts.AdmitThreshold,
		key:            deriveKey(opts.Secret, h.Salt),
		salt:           h.Salt,
	}
	l.cursor.Store(h.WriteCursor)
	l.nonceCounter.Store(h.NonceCounter)

	if opts.IndexPath != "" {
		idx, err := OpenIndex(opts.IndexPath)
		if err != nil {
			unix.Munmap(data)
			f.Close()
			return nil, err
		}
		l.idx = idx
	}

	return l, nil
}

// Close unmaps and closes the underlying file, and the secondary
// index if one is attached.
func (l *Lake) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.idx != nil {
		l.idx.Close()
	}
	if err := unix.Munmap(l.data); err != nil {
		return err
	}
	return l.f.Close()
}

// Put admits record iff record.Signal >= the admission threshold;
// otherwise it is discarded silently (spec.md §4.8's admission law —
// the caller is never told a record was suppressed).
func (l *Lake) Put(ctx context.Context, record Record) error {
	if record.Signal < l.admitThreshold {
		return nil
	}

	plaintext, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("lake: marshal record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	counter := l.nonceCounter.Add(1)
	nonce, ciphertext, err := sealRecord(l.key, l.salt, counter, plaintext)
	if err != nil {
		return err
	}

	total := recordHeaderLen + nonceLen + len(ciphertext)
	cursor := l.cursor.Load()
	if err := l.ensureCapacity(cursor, total); err != nil {
		return err
	}

	buf := l.data[cursor : cursor+uint64(total)]
	binary.LittleEndian.PutUint64(buf[0:8], record.TimestampMs)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(plaintext)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(ciphertext)))
	copy(buf[recordHeaderLen:], nonce)
	copy(buf[recordHeaderLen+nonceLen:], ciphertext)

	// Durability: flush the record bytes, THEN advance and persist the
	// cursor, so a crash mid-write leaves the cursor pointing before the
	// torn tail (spec.md §4.8's durability rule).
	if err := unix.Msync(l.data[cursor:cursor+uint64(total)], unix.MS_SYNC); err != nil {
		return fmt.Errorf("lake: msync record: %w", err)
	}

	newCursor := cursor + uint64(total)
	l.cursor.Store(newCursor)
	l.persistHeader(newCursor, counter)

	if l.idx != nil {
		if err := l.idx.Record(record.TimestampMs, cursor); err != nil {
			return fmt.Errorf("lake: index record: %w", err)
		}
	}

	return nil
}

func (l *Lake) ensureCapacity(cursor uint64, need int) error {
	if cursor+uint64(need) <= uint64(len(l.data)) {
		return nil
	}

	growPages := (need / l.pageSize) + 1
	newSize := len(l.data) + growPages*l.pageSize

	if err := unix.Munmap(l.data); err != nil {
		return fmt.Errorf("lake: munmap for grow: %w", err)
	}
	if err := l.f.Truncate(int64(newSize)); err != nil {
		return fmt.Errorf("lake: truncate for grow: %w", err)
	}
	data, err := unix.Mmap(int(l.f.Fd()), 0, newSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fluxerr.OutOfSpace
	}
	l.data = data
	return nil
}

func (l *Lake) persistHeader(cursor, nonceCounter uint64) {
	binary.LittleEndian.PutUint64(l.data[offWriteCursor:], cursor)
	binary.LittleEndian.PutUint64(l.data[offNonceCtr:], nonceCounter)
	unix.Msync(l.data[0:l.pageSize], unix.MS_SYNC)
}

// Range scans forward from the end of the header page (or, with a
// secondary index attached, from the indexed offset for fromMs) through
// the committed write cursor, decrypting every record in [fromMs, toMs). Corrupt
// records are skipped; iteration continues (spec.md §4.8).
func (l *Lake) Range(fromMs, toMs uint64) ([]Record, error) {
	start := uint64(l.pageSize)
	if l.idx != nil {
		if off, ok, err := l.idx.Lookup(fromMs); err == nil && ok {
			start = off
		}
	}

	cursor := l.cursor.Load()
	var out []Record
	pos := start
	for pos < cursor {
		rec, consumed, ok := l.decodeAt(pos, cursor)
		if !ok {
			// Corrupt or torn record: skip ahead one page size and keep
			// scanning rather than aborting the whole range.
			pos += uint64(l.pageSize)
			continue
		}
		pos += consumed
		if rec.TimestampMs < fromMs || rec.TimestampMs >= toMs {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *Lake) decodeAt(pos, cursor uint64) (Record, uint64, bool) {
	if pos+recordHeaderLen > cursor {
		return Record{}, 0, false
	}
	hdr := l.data[pos : pos+recordHeaderLen]
	ts := binary.LittleEndian.Uint64(hdr[0:8])
	plainLen := binary.LittleEndian.Uint32(hdr[8:12])
	cipherLen := binary.LittleEndian.Uint32(hdr[12:16])

	total := recordHeaderLen + nonceLen + int(cipherLen)
	if pos+uint64(total) > cursor {
		return Record{}, 0, false
	}

	nonce := l.data[pos+recordHeaderLen : pos+recordHeaderLen+nonceLen]
	ciphertext := l.data[pos+recordHeaderLen+nonceLen : pos+uint64(total)]

	plaintext, err := openRecord(l.key, nonce, ciphertext)
	if err != nil || uint32(len(plaintext)) != plainLen {
		return Record{}, 0, false
	}

	var rec Record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return Record{}, 0, false
	}
	rec.TimestampMs = ts
	return rec, uint64(total), true
}
