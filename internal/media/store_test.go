package media

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	stored, err := store.Save(strings.NewReader("hello"), "photo.png")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(stored, "_photo.png") {
		t.Errorf("stored name = %q, want uuid-prefixed original name", stored)
	}
	if stored == "photo.png" {
		t.Error("stored name missing uuid prefix")
	}

	f, err := store.Open(stored)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("stored content = %q, want hello", content)
	}
}

func TestSaveRejectsDisallowedTypes(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	for _, name := range []string{"script.exe", "page.html", "noextension", "shell.sh"} {
		if _, err := store.Save(strings.NewReader("x"), name); !errors.Is(err, ErrDisallowedType) {
			t.Errorf("Save(%q) error = %v, want ErrDisallowedType", name, err)
		}
	}
}

func TestSaveStripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	stored, err := store.Save(strings.NewReader("x"), "../../etc/cron.d/evil.txt")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.Contains(stored, "/") || strings.Contains(stored, "..") {
		t.Fatalf("stored name %q contains path components", stored)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("upload dir holds %d files, want 1", len(entries))
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.png", "photo.png"},
		{"../../etc/passwd", "passwd"},
		{"sp ace!.png", "space.png"},
		{"", "file"},
		{"..", "file"},
		{"ünïcödé.png", "ncd.png"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
