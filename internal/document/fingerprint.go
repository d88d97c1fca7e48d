package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/inful/mdfp"
)

// ErrWrite indicates the document could not be written.
var ErrWrite = errors.New("write gallery document")

var fingerprintPattern = regexp.MustCompile(`<!-- ` + regexp.QuoteMeta(mdfp.FingerprintField) + `: (\S+) -->`)

// Fingerprint hashes the timestamp-free body of a gallery.
func Fingerprint(body string) string {
	return mdfp.CalculateFingerprintFromParts("", body)
}

func fingerprintComment(fp string) string {
	return fmt.Sprintf("<!-- %s: %s -->", mdfp.FingerprintField, fp)
}

// EmbeddedFingerprint extracts the fingerprint stored in a rendered document.
func EmbeddedFingerprint(markdown []byte) (string, bool) {
	m := fingerprintPattern.FindSubmatch(markdown)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// Write stores doc at path unless the existing file already carries the same
// fingerprint. It reports whether the file was written.
func Write(path string, doc Document) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil {
		if fp, ok := EmbeddedFingerprint(existing); ok && fp == doc.Fingerprint {
			return false, nil
		}
	}
	if err := writeAtomic(path, []byte(doc.Markdown)); err != nil {
		return false, err
	}
	return true, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}
