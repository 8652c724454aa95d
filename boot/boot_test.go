package boot

import (
	"bytes"
	"strings"
	"testing"
)

type scriptSerial struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func (s *scriptSerial) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *scriptSerial) Write(p []byte) (int, error) { return s.out.Write(p) }

func runLoader(t *testing.T, input string) string {
	t.Helper()
	s := &scriptSerial{in: bytes.NewReader([]byte(input))}
	New(s, nil).Run()
	return s.out.String()
}

func TestLoaderBootReturns(t *testing.T) {
	out := runLoader(t, "boot\n")
	if !strings.Contains(out, "ember loader started.\n") {
		t.Fatalf("output = %q, want the banner", out)
	}
	if !strings.Contains(out, "loader> ") {
		t.Fatalf("output = %q, want a prompt", out)
	}
}

func TestLoaderEndOfInputReturns(t *testing.T) {
	// No commands at all: Run must still terminate.
	runLoader(t, "")
}

func TestLoaderUnknownCommand(t *testing.T) {
	out := runLoader(t, "frobnicate\nboot\n")
	if !strings.Contains(out, "unknown.\n") {
		t.Fatalf("output = %q, want %q", out, "unknown.\n")
	}
}

func TestLoaderDumpWithoutData(t *testing.T) {
	out := runLoader(t, "dump\nboot\n")
	if !strings.Contains(out, "no data.\n") {
		t.Fatalf("output = %q, want %q", out, "no data.\n")
	}
}

func TestLoaderSaveWithoutData(t *testing.T) {
	out := runLoader(t, "save image\nboot\n")
	if !strings.Contains(out, "no data.\n") {
		t.Fatalf("output = %q, want %q", out, "no data.\n")
	}
}

func TestLoaderEchoesInput(t *testing.T) {
	out := runLoader(t, "boot\n")
	if !strings.Contains(out, "boot\n") {
		t.Fatalf("output = %q, want the echoed command", out)
	}
}

func TestDumpFormatsRows(t *testing.T) {
	s := &scriptSerial{in: bytes.NewReader(nil)}
	l := New(s, nil)
	copy(l.buf, bytes.Repeat([]byte{0xA5}, 16))
	l.size = 16

	l.dump()
	lines := strings.Split(strings.TrimRight(s.out.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("dump produced %d lines, want 1", len(lines))
	}
	if !strings.HasPrefix(lines[0], "a5 a5 a5 a5 a5 a5 a5 a5  a5") {
		t.Fatalf("dump line = %q", lines[0])
	}
}
