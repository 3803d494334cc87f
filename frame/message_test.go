package frame

import (
	"bytes"
	"io"
	"testing"
)

func TestHeaderWriteToReadFrom(t *testing.T) {
	h := Header{Version: Version, Type: TypeFeaturesRequest, Length: 8, XID: 42}

	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %s", err)
	}

	var got Header
	if _, err := got.ReadFrom(&buf); err != nil {
		t.Fatalf("ReadFrom: %s", err)
	}

	if got != h {
		t.Fatalf("ReadFrom: got %+v, want %+v", got, h)
	}
}

func TestHeaderReadFromBadLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x04, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00})

	var h Header
	if _, err := h.ReadFrom(buf); err != ErrBadLength {
		t.Fatalf("ReadFrom: got %v, want %v", err, ErrBadLength)
	}
}

func TestHeaderReadFromShort(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x04, 0x00, 0x00})

	var h Header
	if _, err := h.ReadFrom(buf); err == nil {
		t.Fatal("ReadFrom: expected an error on a truncated header")
	}
}

// slowReader dribbles out data a single byte at a time, so a naive
// single Read call on the underlying reader would under-read both the
// header and the body.
type slowReader struct {
	r io.Reader
}

func (s slowReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return s.r.Read(p[:1])
}

func TestReaderReadMessageExactLength(t *testing.T) {
	body := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	h := Header{Version: Version, Type: TypeEchoRequest, Length: uint16(HeaderLen + len(body)), XID: 7}

	var wire bytes.Buffer
	if _, err := h.WriteTo(&wire); err != nil {
		t.Fatalf("WriteTo: %s", err)
	}
	wire.Write(body)

	trailer := []byte{0x01, 0x02, 0x03}
	wire.Write(trailer)

	fr := NewReader(slowReader{&wire})

	msg, err := fr.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %s", err)
	}

	if msg.Header != h {
		t.Fatalf("ReadMessage: header = %+v, want %+v", msg.Header, h)
	}
	if !bytes.Equal(msg.Body, body) {
		t.Fatalf("ReadMessage: body = %v, want %v", msg.Body, body)
	}

	rest, _ := io.ReadAll(&wire)
	if !bytes.Equal(rest, trailer) {
		t.Fatalf("ReadMessage consumed into the next message: leftover = %v, want %v", rest, trailer)
	}
}

func TestReaderReadMessageUnsupportedVersion(t *testing.T) {
	h := Header{Version: 0x01, Type: TypeFeaturesRequest, Length: HeaderLen}

	var wire bytes.Buffer
	h.WriteTo(&wire)

	fr := NewReader(&wire)
	_, err := fr.ReadMessage()
	if err != ErrUnsupportedVersion {
		t.Fatalf("ReadMessage: got %v, want %v", err, ErrUnsupportedVersion)
	}
}

func TestReaderReadMessageHelloIgnoresVersion(t *testing.T) {
	h := Header{Version: 0x01, Type: TypeHello, Length: HeaderLen}

	var wire bytes.Buffer
	h.WriteTo(&wire)

	fr := NewReader(&wire)
	if _, err := fr.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage: unexpected error for HELLO with foreign version: %s", err)
	}
}

func TestEncodeFixesUpLength(t *testing.T) {
	req := &struct{ io.WriterTo }{WriterTo: writerToFunc(func(w io.Writer) (int64, error) {
		n, err := w.Write([]byte{0x01, 0x02, 0x03})
		return int64(n), err
	})}

	var buf bytes.Buffer
	if _, err := Encode(&buf, Header{Version: Version, Type: TypeEchoRequest, XID: 1}, req); err != nil {
		t.Fatalf("Encode: %s", err)
	}

	var got Header
	got.ReadFrom(&buf)

	if want := uint16(HeaderLen + 3); got.Length != want {
		t.Fatalf("Encode: length = %d, want %d", got.Length, want)
	}
}

type writerToFunc func(w io.Writer) (int64, error)

func (f writerToFunc) WriteTo(w io.Writer) (int64, error) { return f(w) }
