package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// rotatedTimeFormat names rotated files so they sort chronologically.
const rotatedTimeFormat = "20060102T150405"

// RotatingWriter appends to a single log file and moves it aside once the
// next write would push it past the size limit. Rotated files get a
// timestamp inserted before the extension (strix.log becomes
// strix-20260829T101500.log), are optionally gzip compressed, and are
// pruned after maxAge days. Files are created owner-only because tool
// output in this runtime can carry credentials and target data.
type RotatingWriter struct {
	mu       sync.Mutex
	path     string
	limit    int64
	maxAge   int
	compress bool

	out  *os.File
	size int64
}

// NewRotatingWriter opens path for appending, creating parent directories
// as needed, and prunes rotated files left over from earlier runs.
func NewRotatingWriter(path string, maxSizeMB, maxAgeDays int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:     path,
		limit:    int64(maxSizeMB) << 20,
		maxAge:   maxAgeDays,
		compress: compress,
	}
	if err := w.open(); err != nil {
		return nil, err
	}

	go w.prune()

	return w, nil
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.out = f
	w.size = info.Size()
	return nil
}

// Write appends p, rotating first when the file would exceed the limit.
// A single entry larger than the limit still lands in one file.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 && w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.out.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the live file. Further writes fail.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out == nil {
		return nil
	}
	err := w.out.Close()
	w.out = nil
	return err
}

// rotatedName inserts ts before the extension so rotated files glob and
// sort next to the live one.
func (w *RotatingWriter) rotatedName(ts time.Time) string {
	ext := filepath.Ext(w.path)
	stem := strings.TrimSuffix(w.path, ext)
	return fmt.Sprintf("%s-%s%s", stem, ts.Format(rotatedTimeFormat), ext)
}

// rotate moves the live file aside and reopens a fresh one. Compression
// and pruning of the rotated file happen off the write path. Caller
// holds w.mu.
func (w *RotatingWriter) rotate() error {
	if err := w.out.Close(); err != nil {
		return err
	}
	rotated := w.rotatedName(time.Now())
	if err := os.Rename(w.path, rotated); err != nil {
		return err
	}
	if err := w.open(); err != nil {
		return err
	}

	go func() {
		if w.compress {
			w.compressRotated(rotated)
		}
		w.prune()
	}()

	return nil
}

// compressRotated gzips a rotated file in place and removes the original.
func (w *RotatingWriter) compressRotated(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	gzw := gzip.NewWriter(dst)
	if _, err := io.Copy(gzw, src); err != nil {
		gzw.Close()
		dst.Close()
		return err
	}
	if err := gzw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

// prune removes rotated files older than maxAge days. The live file is
// never touched.
func (w *RotatingWriter) prune() {
	if w.maxAge <= 0 {
		return
	}

	ext := filepath.Ext(w.path)
	stem := strings.TrimSuffix(w.path, ext)

	matches, err := filepath.Glob(stem + "-*" + ext)
	if err != nil {
		return
	}
	compressed, err := filepath.Glob(stem + "-*" + ext + ".gz")
	if err != nil {
		return
	}
	matches = append(matches, compressed...)

	cutoff := time.Now().AddDate(0, 0, -w.maxAge)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(path)
		}
	}
}
