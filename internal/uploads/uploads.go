// Package uploads names and stores attachment files in a shared directory.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const prefixLayout = "20060102150405"

// StoredName returns a collision-resistant file name: a UTC timestamp prefix
// followed by the original document name, or a generated name for photos
// and unnamed documents.
func StoredName(original string, photo bool, now time.Time) string {
	var name string
	switch {
	case photo:
		name = "photo_" + uuid.NewString() + ".jpg"
	default:
		name = sanitize(original)
		if name == "" {
			name = "doc_" + uuid.NewString() + ".pdf"
		}
	}
	return now.UTC().Format(prefixLayout) + "_" + name
}

func sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	switch name {
	case ".", "/", "..":
		return ""
	}
	return strings.TrimSpace(name)
}

// Dir is the attachment directory shared by all conversations.
type Dir struct {
	root string
}

// Open creates the directory if needed.
func Open(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create %s: %w", root, err)
	}
	return &Dir{root: root}, nil
}

// Path returns the on-disk location of a stored name.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, filepath.Base(name))
}

// maxSuffix bounds the numbered alternatives Save tries for a taken name.
const maxSuffix = 100

// Save writes r under name and returns the name actually used. When name is
// taken, a numeric suffix is added before the extension; an existing file is
// never overwritten. A partially written file is removed on error.
func (d *Dir) Save(name string, r io.Reader) (string, error) {
	f, stored, err := d.create(name)
	if err != nil {
		return "", err
	}
	path := d.Path(stored)
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("uploads: write %s: %w", stored, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("uploads: close %s: %w", stored, err)
	}
	return stored, nil
}

func (d *Dir) create(name string) (*os.File, string, error) {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := base
	for i := 2; ; i++ {
		f, err := os.OpenFile(d.Path(candidate), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) || i > maxSuffix {
			return nil, "", fmt.Errorf("uploads: create %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}

// Exists reports whether a stored name is present.
func (d *Dir) Exists(name string) bool {
	_, err := os.Stat(d.Path(name))
	return err == nil
}
