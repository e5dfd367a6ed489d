package rom

import (
	"os"
	"path/filepath"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestIdentifier(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Pong (1 player).ch8", "pong"},
		{"Space Invaders [David Winter].ch8", "space_invaders"},
		{"2048", "rom_2048"},
		{"___", "rom"},
		{"", "rom"},
		{"Tetris!!!", "tetris"},
		{"UFO", "ufo"},
	}
	for _, c := range cases {
		got := Identifier(c.in)
		assert(t, got == c.want, "Identifier(%q) = %q, want %q", c.in, got, c.want)

		for _, r := range got {
			valid := r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
			assert(t, valid, "Identifier(%q) = %q contains invalid rune %q", c.in, got, r)
		}
		assert(t, got[0] == '_' || (got[0] >= 'a' && got[0] <= 'z'), "Identifier(%q) = %q starts with digit", c.in, got)
	}
}

func TestNewSizeBounds(t *testing.T) {
	if _, err := New([]byte{0x00}, "x"); err == nil {
		t.Fatalf("expected error for 1 byte ROM")
	}

	big := make([]byte, MaxSize+2)
	if _, err := New(big, "x"); err == nil {
		t.Fatalf("expected error for oversized ROM")
	}

	exact := make([]byte, MaxSize)
	r, err := New(exact, "x")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(r.Data) == MaxSize, "expected %d bytes, got %d", MaxSize, len(r.Data))

	minimal, err := New([]byte{0x12, 0x00}, "x")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(minimal.Data) == 2, "expected 2 bytes, got %d", len(minimal.Data))
}

func TestNewOddTrailingByte(t *testing.T) {
	r, err := New([]byte{0x12, 0x00, 0xFF}, "x")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(r.Data) == 2, "expected trailing odd byte dropped, got %d bytes", len(r.Data))
	assert(t, r.Trimmed, "expected Trimmed to be true")
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ch8"))
	assert(t, err != nil, "expected error")
}

func TestLoadDerivesIDFromFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Breakout (Brix).ch8")
	assert(t, os.WriteFile(path, []byte{0x00, 0xE0}, 0o644) == nil, "write failed")

	r, err := Load(path)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, r.ID == "breakout", "expected id 'breakout', got %q", r.ID)
}
