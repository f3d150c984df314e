package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/armalogs/backend/internal/models"
)

const (
	// SnapshotMagic is "ALEV".
	SnapshotMagic uint32 = 0x414C4556
	// SnapshotVersion is the current snapshot layout.
	SnapshotVersion uint8 = 1
)

// snapshot is the msgpack document written by SnapshotCodec. Server and
// player names are stored once in Strings and referenced by index.
type snapshot struct {
	Magic   uint32           `msgpack:"magic"`
	Version uint8            `msgpack:"version"`
	Strings []string         `msgpack:"strings"`
	Records []snapshotRecord `msgpack:"records"`
}

type snapshotRecord struct {
	_msgpack struct{} `msgpack:",as_array"`

	Day     int32  // days since 1970-01-01
	Seconds int32  // seconds since midnight
	Server  uint32 // index into Strings
	Kind    uint8
	Subject uint32 // index into Strings
}

// SnapshotCodec stores events as a compact msgpack snapshot.
type SnapshotCodec struct{}

func NewSnapshotCodec() *SnapshotCodec {
	return &SnapshotCodec{}
}

func (c *SnapshotCodec) Name() string {
	return "msgpack"
}

func (c *SnapshotCodec) Extensions() []string {
	return []string{".msgpack", ".mpk"}
}

func (c *SnapshotCodec) Save(path string, events models.EventStore) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := EncodeSnapshot(w, events); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *SnapshotCodec) Load(path string) (models.EventStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeSnapshot(bufio.NewReader(f))
}

// EncodeSnapshot writes events to w.
func EncodeSnapshot(w io.Writer, events models.EventStore) error {
	snap := snapshot{
		Magic:   SnapshotMagic,
		Version: SnapshotVersion,
		Strings: make([]string, 0, 64),
		Records: make([]snapshotRecord, 0, len(events)),
	}

	index := make(map[string]uint32)
	intern := func(s string) uint32 {
		if idx, ok := index[s]; ok {
			return idx
		}
		idx := uint32(len(snap.Strings))
		snap.Strings = append(snap.Strings, s)
		index[s] = idx
		return idx
	}

	for _, e := range events {
		snap.Records = append(snap.Records, snapshotRecord{
			Day:     int32(e.Date.Unix() / models.SecondsPerDay),
			Seconds: int32(e.Time),
			Server:  intern(e.Server),
			Kind:    uint8(e.Kind),
			Subject: intern(e.Subject),
		})
	}

	if err := msgpack.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (models.EventStore, error) {
	var snap snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Magic != SnapshotMagic {
		return nil, fmt.Errorf("invalid snapshot magic %#x", snap.Magic)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	lookup := func(idx uint32) (string, error) {
		if int(idx) >= len(snap.Strings) {
			return "", fmt.Errorf("string index %d out of range", idx)
		}
		return snap.Strings[idx], nil
	}

	events := make(models.EventStore, 0, len(snap.Records))
	for i, rec := range snap.Records {
		server, err := lookup(rec.Server)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		subject, err := lookup(rec.Subject)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		kind := models.EventKind(rec.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("record %d: unknown event code %d", i, rec.Kind)
		}

		events = append(events, models.LogEvent{
			Date:    time.Unix(int64(rec.Day)*models.SecondsPerDay, 0).UTC(),
			Time:    models.TimeOfDay(rec.Seconds),
			Server:  server,
			Kind:    kind,
			Subject: subject,
		})
	}

	return events, nil
}
