// Package journal is a local append-only spool for frames and alerts. It is
// used as a persistence sink when no database is reachable and can later be
// replayed into one.
package journal

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

const (
	recordHeaderLen = 12
	logName         = "journal.log"
	metaName        = "journal.meta"
)

// ErrCorrupt reports a record that cannot be read back.
var ErrCorrupt = errors.New("journal: corrupt record")

type EntryID uint64

type Kind string

const (
	KindTelemetry Kind = "telemetry"
	KindAlert     Kind = "alert"
)

// Record is the JSON body of one journal entry.
type Record struct {
	Kind  Kind               `json:"kind"`
	Frame *domain.Frame      `json:"frame,omitempty"`
	Alert *domain.AlertEvent `json:"alert,omitempty"`
}

type Stats struct {
	OldestUncommitted EntryID
	LatestAppended    EntryID
	SizeBytes         int64
}

// Journal stores records as [8 byte id][4 byte length][json]. A torn record
// at the tail is cut off when the journal is reopened.
type Journal struct {
	mu        sync.Mutex
	dir       string
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	nextID    EntryID
	committed EntryID
	sizeBytes int64
}

func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, logName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	j := &Journal{
		dir:      dir,
		path:     path,
		metaPath: filepath.Join(dir, metaName),
		file:     f,
		writer:   bufio.NewWriterSize(f, 64<<10),
	}
	if err := j.bootstrap(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) bootstrap() error {
	if err := j.scanExisting(); err != nil {
		return err
	}
	if err := j.loadCommitted(); err != nil {
		return err
	}
	if j.nextID < j.committed {
		j.nextID = j.committed
	}
	_, err := j.file.Seek(0, io.SeekEnd)
	return err
}

func (j *Journal) scanExisting() error {
	stat, err := j.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		return nil
	}

	rf, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var (
		offset int64
		lastID EntryID
	)

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("journal scan header: %w", err)
		}
		id := EntryID(binary.BigEndian.Uint64(hdr[0:8]))
		length := binary.BigEndian.Uint32(hdr[8:12])

		if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("journal scan body: %w", err)
		}
		offset += recordHeaderLen + int64(length)
		lastID = id
	}

	if offset != stat.Size() {
		if err := j.file.Truncate(offset); err != nil {
			return err
		}
	}
	j.sizeBytes = offset
	j.nextID = lastID
	return nil
}

func (j *Journal) loadCommitted() error {
	data, err := os.ReadFile(j.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("journal meta parse: %w", err)
	}
	j.committed = EntryID(u)
	return nil
}

// Append buffers rec. Call Flush to hand it to the OS.
func (j *Journal) Append(rec Record) (EntryID, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.appendLocked(b)
}

func (j *Journal) appendLocked(b []byte) (EntryID, error) {
	if j.file == nil {
		return 0, os.ErrClosed
	}
	id := j.nextID + 1

	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := j.writer.Write(b); err != nil {
		return 0, err
	}

	j.nextID = id
	j.sizeBytes += int64(len(b) + len(hdr))
	return id, nil
}

func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return os.ErrClosed
	}
	return j.writer.Flush()
}

// Iterate calls fn for every record with an id >= from, oldest first. Only
// records appended before the call are visited. fn may call Commit.
func (j *Journal) Iterate(from EntryID, fn func(id EntryID, rec Record) error) error {
	j.mu.Lock()
	if j.file != nil {
		if err := j.writer.Flush(); err != nil {
			j.mu.Unlock()
			return err
		}
	}
	size := j.sizeBytes
	f, err := os.Open(j.path)
	j.mu.Unlock()
	if err != nil {
		return err
	}
	defer f.Close()

	return readRecords(bufio.NewReader(io.LimitReader(f, size)), func(id EntryID, body []byte) error {
		if id < from {
			return nil
		}
		var rec Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrCorrupt, id, err)
		}
		return fn(id, rec)
	})
}

func readRecords(r *bufio.Reader, fn func(id EntryID, body []byte) error) error {
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: header: %v", ErrCorrupt, err)
		}
		id := EntryID(binary.BigEndian.Uint64(hdr[0:8]))
		body := make([]byte, binary.BigEndian.Uint32(hdr[8:12]))
		if _, err := io.ReadFull(r, body); err != nil {
			return fmt.Errorf("%w: body of entry %d: %v", ErrCorrupt, id, err)
		}
		if err := fn(id, body); err != nil {
			return err
		}
	}
}

// Commit marks every record up to and including upto as delivered.
func (j *Journal) Commit(upto EntryID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if upto > j.committed {
		j.committed = upto
	}
	return j.persistMetaLocked()
}

// TruncateCommitted rewrites the log without the committed prefix.
func (j *Journal) TruncateCommitted() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return os.ErrClosed
	}
	if err := j.writer.Flush(); err != nil {
		return err
	}

	src, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer src.Close()

	tmpPath := j.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(tmp)

	var kept int64
	err = readRecords(bufio.NewReader(src), func(id EntryID, body []byte) error {
		if id <= j.committed {
			return nil
		}
		var hdr [recordHeaderLen]byte
		binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
		binary.BigEndian.PutUint32(hdr[8:12], uint32(len(body)))
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
		kept += recordHeaderLen + int64(len(body))
		return nil
	})
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal truncate: %w", err)
	}

	if err := j.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		j.file = nil
		return err
	}
	j.file = f
	j.writer.Reset(f)
	j.sizeBytes = kept
	return nil
}

func (j *Journal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Stats{
		OldestUncommitted: j.committed + 1,
		LatestAppended:    j.nextID,
		SizeBytes:         j.sizeBytes,
	}
}

func (j *Journal) Dir() string { return j.dir }

func (j *Journal) persistMetaLocked() error {
	data := []byte(fmt.Sprintf("%d\n", j.committed))
	return os.WriteFile(j.metaPath, data, 0o644)
}

func (j *Journal) Name() string { return "journal" }

// SaveTelemetry and SaveAlert make the journal usable as a pipeline sink.
// Each record is flushed to the OS before returning.
func (j *Journal) SaveTelemetry(ctx context.Context, f domain.Frame) error {
	return j.save(ctx, Record{Kind: KindTelemetry, Frame: &f})
}

func (j *Journal) SaveAlert(ctx context.Context, a domain.AlertEvent) error {
	return j.save(ctx, Record{Kind: KindAlert, Alert: &a})
}

func (j *Journal) save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.appendLocked(b); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return j.writer.Flush()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := errors.Join(j.writer.Flush(), j.file.Sync(), j.file.Close())
	j.file = nil
	return err
}

var _ ports.PersistenceSink = (*Journal)(nil)
