package host

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// NetworkLogPattern matches the files ACT writes network logs to.
const NetworkLogPattern = "Network_*.log"

// Tailer follows the newest ACT network log in a directory, switching to a
// newer file when ACT starts one, and forwards each complete line.
type Tailer struct {
	Dir     string
	Pattern string
	Logger  *log.Logger

	// FromStart reads the current file from the beginning instead of only
	// following new lines.
	FromStart bool

	// PollInterval drains the file even without a write notification. ACT
	// on some filesystems only flushes metadata when the file is closed.
	PollInterval time.Duration

	file    *os.File
	path    string
	offset  int64
	partial []byte
}

// NewTailer returns a tailer for dir with the default pattern.
func NewTailer(dir string, logger *log.Logger) *Tailer {
	if logger == nil {
		logger = log.New(os.Stderr, "host: ", log.LstdFlags)
	}
	return &Tailer{
		Dir:          dir,
		Pattern:      NetworkLogPattern,
		Logger:       logger,
		PollInterval: time.Second,
	}
}

// Run tails until ctx is cancelled.
func (t *Tailer) Run(ctx context.Context, fn Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tail: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(t.Dir); err != nil {
		return fmt.Errorf("tail %s: %w", t.Dir, err)
	}
	defer t.closeFile()

	if newest := t.newest(); newest != "" {
		if err := t.open(newest, !t.FromStart); err != nil {
			t.Logger.Printf("tail: %v", err)
		}
		t.drain(fn)
	} else {
		t.Logger.Printf("tail: no %s in %s yet, waiting", t.Pattern, t.Dir)
	}

	poll := t.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if match, _ := filepath.Match(t.Pattern, filepath.Base(ev.Name)); !match {
				continue
			}
			if ev.Has(fsnotify.Create) && ev.Name != t.path {
				// Flush what is left of the old file before switching.
				t.drain(fn)
				if err := t.open(ev.Name, false); err != nil {
					t.Logger.Printf("tail: %v", err)
					continue
				}
				t.Logger.Printf("tail: following %s", filepath.Base(ev.Name))
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				t.drain(fn)
			}

		case <-ticker.C:
			if t.file == nil {
				if newest := t.newest(); newest != "" {
					if err := t.open(newest, false); err != nil {
						t.Logger.Printf("tail: %v", err)
						continue
					}
				}
			}
			t.drain(fn)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			t.Logger.Printf("tail watcher error: %v", err)
		}
	}
}

// Path returns the file currently followed.
func (t *Tailer) Path() string { return t.path }

func (t *Tailer) newest() string {
	matches, err := filepath.Glob(filepath.Join(t.Dir, t.Pattern))
	if err != nil || len(matches) == 0 {
		return ""
	}
	var best string
	var bestMod time.Time
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		if best == "" || fi.ModTime().After(bestMod) || (fi.ModTime().Equal(bestMod) && m > best) {
			best, bestMod = m, fi.ModTime()
		}
	}
	return best
}

func (t *Tailer) open(path string, atEnd bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	var off int64
	if atEnd {
		off, err = f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return fmt.Errorf("seek %s: %w", path, err)
		}
	}
	t.closeFile()
	t.file, t.path, t.offset, t.partial = f, path, off, nil
	return nil
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}

// drain reads everything appended since the last call and forwards every
// complete line. A trailing partial line is kept for the next call.
func (t *Tailer) drain(fn Handler) {
	if t.file == nil {
		return
	}
	if fi, err := t.file.Stat(); err == nil && fi.Size() < t.offset {
		// Truncated: start over.
		t.offset, t.partial = 0, nil
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			t.Logger.Printf("tail: %v", err)
			return
		}
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := t.file.Read(buf)
		if n > 0 {
			t.offset += int64(n)
			t.partial = append(t.partial, buf[:n]...)
			t.emitLines(fn)
		}
		if err != nil {
			if err != io.EOF {
				t.Logger.Printf("tail read: %v", err)
			}
			return
		}
	}
}

func (t *Tailer) emitLines(fn Handler) {
	for {
		i := bytes.IndexByte(t.partial, '\n')
		if i < 0 {
			return
		}
		line := strings.TrimRight(string(t.partial[:i]), "\r")
		t.partial = t.partial[i+1:]
		if ev, ok := FromNetworkLine(line); ok {
			fn(ev)
		}
	}
}
