package store

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func transparentPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.NRGBA{0, 0, 0, 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSecureFilename(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"My Contract v2.pdf", "My_Contract_v2.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\scan.pdf`, "scan.pdf"},
		{"résumé.pdf", "rsum.pdf"},
		{".hidden.pdf", "hidden.pdf"},
		{"///", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			if got := SecureFilename(tc.in); got != tc.want {
				t.Errorf("SecureFilename(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"", ".", "..", "../x.pdf", "a/b.pdf", `a\b.pdf`, "a\x00.pdf"} {
		if err := ValidName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
	if err := ValidName("0123abcd.pdf"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDocumentsSaveResolve(t *testing.T) {
	ctx := context.Background()
	docs, err := NewDocuments(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewDocuments failed: %v", err)
	}

	name, err := docs.Save(ctx, []byte("%PDF-1.7 test"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasSuffix(name, ".pdf") || len(name) != 32+len(".pdf") {
		t.Errorf("unexpected name %q", name)
	}

	data, err := docs.Resolve(ctx, name)
	if err != nil || string(data) != "%PDF-1.7 test" {
		t.Errorf("Resolve returned %q, %v", data, err)
	}

	if _, err := docs.Resolve(ctx, "missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := docs.Resolve(ctx, "../"+name); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}

	entries, err := os.ReadDir(docs.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no temporary files left behind, got %d entries", len(entries))
	}
}

func TestFileSignatures(t *testing.T) {
	ctx := context.Background()
	sigs, err := NewFileSignatures(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSignatures failed: %v", err)
	}
	defer sigs.Close()

	list, err := sigs.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v %v", list, err)
	}

	name, err := sigs.Save(ctx, transparentPNG(t))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Errorf("unexpected name %q", name)
	}

	data, err := sigs.Resolve(ctx, name)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("stored signature is not a PNG: %v", err)
	}
	// transparency is flattened onto white
	if r, g, b, a := img.At(3, 1).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("expected opaque white, got %v %v %v %v", r, g, b, a)
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r != 0 {
		t.Errorf("expected the black pixel to survive, got r=%v", r)
	}

	list, err = sigs.List(ctx)
	if err != nil || len(list) != 1 || list[0] != name {
		t.Errorf("unexpected list %v %v", list, err)
	}

	if _, err := sigs.Save(ctx, []byte("not an image")); err == nil {
		t.Error("expected an error for undecodable bytes")
	}
	if _, err := sigs.Save(ctx, nil); err == nil {
		t.Error("expected an error for empty bytes")
	}
	if _, err := sigs.Resolve(ctx, "nope.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisSignatures(t *testing.T) {
	addr := os.Getenv("PDF_EDITOR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PDF_EDITOR_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	key := "pdf-editor:test:" + newName("")
	sigs, err := NewRedisSignatures(ctx, RedisConf{Addr: addr, Key: key})
	if err != nil {
		t.Fatalf("NewRedisSignatures failed: %v", err)
	}
	defer func() {
		sigs.client.Del(ctx, key)
		sigs.Close()
	}()

	name, err := sigs.Save(ctx, transparentPNG(t))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := sigs.Resolve(ctx, name); err != nil {
		t.Errorf("Resolve failed: %v", err)
	}
	if _, err := sigs.Resolve(ctx, "nope.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	list, err := sigs.List(ctx)
	if err != nil || len(list) != 1 || list[0] != name {
		t.Errorf("unexpected list %v %v", list, err)
	}
}

func TestNewRedisSignaturesRequiresAddr(t *testing.T) {
	if _, err := NewRedisSignatures(context.Background(), RedisConf{}); err == nil {
		t.Error("expected an error without an address")
	}
}
