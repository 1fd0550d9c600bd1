package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultDirPerm        = 0o700
	defaultFilePerm       = 0o600
	defaultRotateMaxBytes = 32 * 1024 * 1024
)

type Options struct {
	DirPerm  os.FileMode
	FilePerm os.FileMode
	// RotateMaxBytes renames the current file with a UTC timestamp suffix
	// once the next append would grow it past this size.
	RotateMaxBytes int64
	SyncEachWrite  bool
}

func (o Options) normalized() Options {
	if o.DirPerm == 0 {
		o.DirPerm = defaultDirPerm
	}
	if o.FilePerm == 0 {
		o.FilePerm = defaultFilePerm
	}
	if o.RotateMaxBytes <= 0 {
		o.RotateMaxBytes = defaultRotateMaxBytes
	}
	return o
}

// Writer appends one JSON document per line. Every append is flushed.
type Writer struct {
	path string
	opts Options

	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	size   int64
	closed bool

	now func() time.Time
}

func Open(path string, opts Options) (*Writer, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{path: path, opts: opts.normalized(), now: time.Now}
	if err := w.openLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Append(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEncodeFailed, w.path, err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.reopenIfMovedLocked(); err != nil {
		return err
	}
	if w.size > 0 && w.size+int64(len(data)) > w.opts.RotateMaxBytes {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}
	n, err := w.buf.Write(data)
	w.size += int64(n)
	if err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.opts.SyncEachWrite {
		return w.file.Sync()
	}
	return nil
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.closeFileLocked()
}

func (w *Writer) closeFileLocked() error {
	if w.file == nil {
		return nil
	}
	_ = w.buf.Flush()
	err := w.file.Close()
	w.file, w.buf, w.size = nil, nil, 0
	return err
}

// reopenIfMovedLocked follows the path when another writer rotated or
// removed the file, and refreshes the size it wrote. Callers sharing a file
// across processes must hold WithLock around Append.
func (w *Writer) reopenIfMovedLocked() error {
	cur, err := w.file.Stat()
	if err != nil {
		return err
	}
	onDisk, err := os.Stat(w.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	case os.SameFile(cur, onDisk):
		w.size = onDisk.Size()
		return nil
	}
	if err := w.closeFileLocked(); err != nil {
		return err
	}
	return w.openLocked()
}

func (w *Writer) rotateLocked() error {
	if err := w.closeFileLocked(); err != nil {
		return err
	}
	base := w.path + "." + w.now().UTC().Format("20060102T150405Z")
	target := base
	for i := 1; ; i++ {
		if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
			break
		} else if err != nil {
			return err
		}
		target = fmt.Sprintf("%s.%d", base, i)
	}
	if err := os.Rename(w.path, target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return w.openLocked()
}

func (w *Writer) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), w.opts.DirPerm); err != nil {
		return fmt.Errorf("journal ensure dir: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, w.opts.FilePerm)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.size = info.Size()
	return nil
}

func cleanPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return filepath.Clean(path), nil
}
