package lib

import (
	"bytes"
	"testing"
)

func TestPuts(t *testing.T) {
	var buf bytes.Buffer
	Puts(&buf, "hello\n")
	if got := buf.String(); got != "hello\n" {
		t.Fatalf("Puts() wrote %q, want %q", got, "hello\n")
	}
	Puts(nil, "ignored")
}

func TestPutXval(t *testing.T) {
	cases := []struct {
		v     uint32
		width int
		want  string
	}{
		{0, 0, "0"},
		{0, 2, "00"},
		{0x1f, 0, "1f"},
		{0x1f, 4, "001f"},
		{0xdeadbeef, 0, "deadbeef"},
		{0xdeadbeef, 2, "deadbeef"},
		{7, 8, "00000007"},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		PutXval(&buf, c.v, c.width)
		if got := buf.String(); got != c.want {
			t.Fatalf("PutXval(%#x, %d) = %q, want %q", c.v, c.width, got, c.want)
		}
	}
}
