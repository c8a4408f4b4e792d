package scratch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the configured byte limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Store hands out one private directory per request under Root.
type Store struct {
	root   string
	logger *slog.Logger
}

func New(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		root = filepath.Join(os.TempDir(), "referral-uploads")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

func (s *Store) Root() string { return s.root }

// File is an upload written to scratch space. Remove must be called when done.
type File struct {
	ID   string
	Path string
	Size int64

	dir    string
	logger *slog.Logger
}

// Save copies at most limit bytes of r into <root>/<uuid>/<name>. limit <= 0 means unlimited.
// Nothing is left behind on error.
func (s *Store) Save(name string, r io.Reader, limit int64) (*File, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	f := &File{ID: id, dir: dir, Path: filepath.Join(dir, SafeName(name)), logger: s.logger}

	n, err := writeLimited(f.Path, r, limit)
	if err != nil {
		f.Remove()
		return nil, err
	}
	f.Size = n
	s.logger.Debug("scratch.saved", "id", id, "bytes", n)
	return f, nil
}

func writeLimited(path string, r io.Reader, limit int64) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create scratch file: %w", err)
	}
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write scratch file: %w", err)
	}
	if limit > 0 && n > limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return n, nil
}

// Remove deletes the file and its private directory. Safe to call more than once.
func (f *File) Remove() {
	if f == nil || f.dir == "" {
		return
	}
	if err := os.RemoveAll(f.dir); err != nil {
		f.logger.Warn("scratch.cleanup_failed", "id", f.ID, "error", err)
		return
	}
	f.logger.Debug("scratch.removed", "id", f.ID)
}

// SafeName reduces a client-supplied file name to a plain base name, keeping the extension.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." || base == "/" {
		return "upload"
	}
	return base
}
