package xmodem

import (
	"bytes"
	"errors"
	"testing"
)

type session struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func (s *session) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *session) Write(p []byte) (int, error) { return s.out.Write(p) }

func block(seq byte, fill byte) []byte {
	b := []byte{soh, seq, ^seq}
	var sum byte
	for i := 0; i < BlockSize; i++ {
		b = append(b, fill)
		sum += fill
	}
	return append(b, sum)
}

func TestReceiveTwoBlocks(t *testing.T) {
	var stream []byte
	stream = append(stream, block(1, 'a')...)
	stream = append(stream, block(2, 'b')...)
	stream = append(stream, eot)

	s := &session{in: bytes.NewReader(stream)}
	dst := make([]byte, 4*BlockSize)

	n, err := Receive(s, dst)
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if n != 2*BlockSize {
		t.Fatalf("Receive() = %d bytes, want %d", n, 2*BlockSize)
	}
	for i := 0; i < BlockSize; i++ {
		if dst[i] != 'a' || dst[BlockSize+i] != 'b' {
			t.Fatalf("payload corrupted at offset %d", i)
		}
	}

	// NAK to start, one ACK per block, one for EOT.
	want := []byte{nak, ack, ack, ack}
	if !bytes.Equal(s.out.Bytes(), want) {
		t.Fatalf("control bytes = %v, want %v", s.out.Bytes(), want)
	}
}

func TestReceiveBadChecksumRetries(t *testing.T) {
	bad := block(1, 'x')
	bad[len(bad)-1]++ // corrupt the checksum

	var stream []byte
	stream = append(stream, bad...)
	stream = append(stream, block(1, 'x')...)
	stream = append(stream, eot)

	s := &session{in: bytes.NewReader(stream)}
	dst := make([]byte, 2*BlockSize)

	n, err := Receive(s, dst)
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if n != BlockSize {
		t.Fatalf("Receive() = %d bytes, want %d", n, BlockSize)
	}

	want := []byte{nak, nak, ack, ack}
	if !bytes.Equal(s.out.Bytes(), want) {
		t.Fatalf("control bytes = %v, want %v", s.out.Bytes(), want)
	}
}

func TestReceiveDuplicateBlockAcked(t *testing.T) {
	var stream []byte
	stream = append(stream, block(1, 'q')...)
	stream = append(stream, block(1, 'q')...) // sender missed our ACK
	stream = append(stream, block(2, 'r')...)
	stream = append(stream, eot)

	s := &session{in: bytes.NewReader(stream)}
	dst := make([]byte, 4*BlockSize)

	n, err := Receive(s, dst)
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if n != 2*BlockSize {
		t.Fatalf("Receive() = %d bytes, want %d", n, 2*BlockSize)
	}
}

func TestReceiveCancelled(t *testing.T) {
	s := &session{in: bytes.NewReader([]byte{can})}
	if _, err := Receive(s, make([]byte, BlockSize)); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Receive() error = %v, want ErrCancelled", err)
	}
}

func TestReceiveBufferFull(t *testing.T) {
	var stream []byte
	stream = append(stream, block(1, 'z')...)
	stream = append(stream, block(2, 'z')...)

	s := &session{in: bytes.NewReader(stream)}
	if _, err := Receive(s, make([]byte, BlockSize)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Receive() error = %v, want ErrTooLarge", err)
	}
}
