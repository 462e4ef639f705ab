// Package log keeps the sync audit: one JSON line per session in
// zstd-compressed files rotated every UTC hour.
package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"alloyforge.ai/internal/transport/ws"
)

const hourLayout = "2006-01-02-15"

// hourlyFile appends JSON lines to <dir>/<prefix>-<hour>.jsonl.zst. Each
// reopen of an hour's file starts a new zstd frame; readers see the frames
// as one stream.
type hourlyFile struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	zw   *zstd.Encoder
	je   *json.Encoder
}

func newHourlyFile(dir, prefix string) *hourlyFile {
	return &hourlyFile{dir: dir, prefix: prefix, now: time.Now}
}

func (h *hourlyFile) path(hour string) string {
	return filepath.Join(h.dir, h.prefix+"-"+hour+".jsonl.zst")
}

// append writes v as one line and flushes it to disk.
func (h *hourlyFile) append(v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if hour := h.now().UTC().Format(hourLayout); hour != h.hour {
		if err := h.openLocked(hour); err != nil {
			return err
		}
	}
	if err := h.je.Encode(v); err != nil {
		return err
	}
	return h.zw.Flush()
}

func (h *hourlyFile) openLocked(hour string) error {
	if err := h.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	h.f, h.zw, h.je, h.hour = f, zw, json.NewEncoder(zw), hour
	return nil
}

func (h *hourlyFile) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeLocked()
}

func (h *hourlyFile) closeLocked() error {
	if h.f == nil {
		return nil
	}
	err := h.zw.Close()
	if cerr := h.f.Close(); err == nil {
		err = cerr
	}
	h.f, h.zw, h.je, h.hour = nil, nil, nil, ""
	return err
}

// SyncLogger records one entry per recipe sync session under
// <dataDir>/sync/sync-YYYY-MM-DD-HH.jsonl.zst.
type SyncLogger struct{ out *hourlyFile }

var _ ws.Recorder = (*SyncLogger)(nil)

func NewSyncLogger(dataDir string) *SyncLogger {
	return &SyncLogger{out: newHourlyFile(filepath.Join(dataDir, "sync"), "sync")}
}

func (l *SyncLogger) RecordSession(rec ws.SessionRecord) error { return l.out.append(rec) }

func (l *SyncLogger) Close() error { return l.out.close() }
