// Package store keeps uploaded documents and saved signature images.
//
// Names handed out by the stores are opaque "<uuid-hex><ext>" strings.
// Every lookup validates the name before touching the backend, so a name
// can never address anything outside its store.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"pdf-editor/internal/imaging"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidName = errors.New("invalid name")
)

// SignatureStore is a backend for saved signature images.
type SignatureStore interface {
	// Resolve returns the PNG bytes saved under name.
	Resolve(ctx context.Context, name string) ([]byte, error)
	// Save decodes raw image bytes, flattens them onto white and stores
	// them as PNG under a new name.
	Save(ctx context.Context, raw []byte) (string, error)
	// List returns the saved names in lexical order.
	List(ctx context.Context) ([]string, error)
	Close() error
}

// newName returns a fresh "<uuid-hex><ext>" name.
func newName(ext string) string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "") + ext
}

// ValidName rejects names that are empty, relative path elements or carry
// path separators.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// SecureFilename reduces a client-supplied filename to a safe base name:
// directories are dropped, whitespace becomes '_', and only ASCII letters,
// digits, '.', '_' and '-' are kept. Leading dots and underscores are
// trimmed. The result may be empty.
func SecureFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			sb.WriteByte('_')
		case r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-'):
			sb.WriteRune(r)
		}
	}
	return strings.Trim(sb.String(), "._")
}

// signaturePNG normalizes raw image bytes into the stored signature format.
func signaturePNG(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, imaging.ErrEmptyImage
	}
	img, _, err := imaging.Decode(raw)
	if err != nil {
		return nil, err
	}
	return imaging.EncodePNG(img)
}
