//go:build !tinygo

package hal

import (
	"path/filepath"
	"testing"
)

func TestHostFlashEraseAndWrite(t *testing.T) {
	f, err := newHostFlash("", 16*hostEraseBlock)
	if err != nil {
		t.Fatalf("newHostFlash() error: %v", err)
	}

	buf := make([]byte, 4)
	if _, err := f.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt() error: %v", err)
	}
	for _, b := range buf {
		if b != 0xFF {
			t.Fatalf("fresh flash byte = %#x, want 0xFF", b)
		}
	}

	if _, err := f.WriteAt([]byte{1, 2, 3, 4}, 8); err != nil {
		t.Fatalf("WriteAt() error: %v", err)
	}
	if _, err := f.ReadAt(buf, 8); err != nil {
		t.Fatalf("ReadAt() error: %v", err)
	}
	if buf[0] != 1 || buf[3] != 4 {
		t.Fatalf("readback = %v, want [1 2 3 4]", buf)
	}

	if err := f.Erase(0, hostEraseBlock); err != nil {
		t.Fatalf("Erase() error: %v", err)
	}
	if _, err := f.ReadAt(buf, 8); err != nil {
		t.Fatalf("ReadAt() error: %v", err)
	}
	for _, b := range buf {
		if b != 0xFF {
			t.Fatalf("erased byte = %#x, want 0xFF", b)
		}
	}
}

func TestHostFlashBounds(t *testing.T) {
	f, err := newHostFlash("", 4*hostEraseBlock)
	if err != nil {
		t.Fatalf("newHostFlash() error: %v", err)
	}

	if _, err := f.WriteAt([]byte{1}, f.SizeBytes()); err == nil {
		t.Fatal("WriteAt() past the end succeeded")
	}
	if err := f.Erase(1, hostEraseBlock); err == nil {
		t.Fatal("Erase() misaligned succeeded")
	}
	if err := f.Erase(0, f.SizeBytes()+hostEraseBlock); err == nil {
		t.Fatal("Erase() past the end succeeded")
	}
}

func TestHostFlashFileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.img")

	f, err := newHostFlash(path, 4*hostEraseBlock)
	if err != nil {
		t.Fatalf("newHostFlash() error: %v", err)
	}
	if _, err := f.WriteAt([]byte{0xAB}, 16); err != nil {
		t.Fatalf("WriteAt() error: %v", err)
	}

	// A second instance sees the persisted image.
	g, err := newHostFlash(path, 4*hostEraseBlock)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := g.ReadAt(buf, 16); err != nil {
		t.Fatalf("ReadAt() error: %v", err)
	}
	if buf[0] != 0xAB {
		t.Fatalf("persisted byte = %#x, want 0xAB", buf[0])
	}
}
