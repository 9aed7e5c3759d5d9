package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/crowdwatch/internal/risk"
)

// Journal appends alerts as JSON lines to hourly zstd-compressed files.
type Journal struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewJournal creates a journal writing under dir. Files are opened lazily.
func NewJournal(dir string) *Journal {
	return &Journal{
		baseDir: dir,
		prefix:  "alerts",
		now:     time.Now,
	}
}

// Close flushes and closes the current file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

// Record implements the monitor's alert sink: one line per alert.
func (j *Journal) Record(_ context.Context, alerts []risk.Alert) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	hour := j.now().UTC().Format("2006-01-02-15")
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return err
		}
	}

	for _, a := range alerts {
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		if _, err := j.w.Write(b); err != nil {
			return err
		}
		if err := j.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return j.w.Flush()
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 64*1024)
	j.curHour = hour
	return nil
}

func (j *Journal) closeLocked() error {
	var err1 error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err1 = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	j.curHour = ""
	return err1
}

func (j *Journal) pathForHour(hour string) string {
	return filepath.Join(j.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
}

// ReadJournal decodes every alert in a journal file. A file reopened after a
// rotation holds several zstd frames; all are read.
func ReadJournal(path string) ([]risk.Alert, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var out []risk.Alert
	jd := json.NewDecoder(dec)
	for {
		var a risk.Alert
		if err := jd.Decode(&a); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, a)
	}
}
