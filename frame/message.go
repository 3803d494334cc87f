package frame

import (
	"io"
)

// Message is a single OpenFlow protocol data unit as it travels on the
// wire: a Header followed by exactly Header.BodyLen() bytes of
// type-specific body. Message does not interpret the body — callers
// unmarshal Body into the concrete ofp type that matches Header.Type
// (and, for multipart messages, the embedded sub-type) themselves.
type Message struct {
	Header Header
	Body   []byte
}

// WriteTo serializes the header followed by the raw body. The header's
// Length field must already reflect HeaderLen+len(Body); callers that
// build a Message from a typed ofp value should use Encode instead of
// constructing a Message by hand.
func (m Message) WriteTo(w io.Writer) (int64, error) {
	n, err := m.Header.WriteTo(w)
	if err != nil {
		return n, err
	}

	if len(m.Body) == 0 {
		return n, nil
	}

	bn, err := w.Write(m.Body)
	return n + int64(bn), err
}

// Encode serializes a Header paired with a body that knows how to
// write itself; the header's length field is fixed up to match the
// number of bytes body actually produces.
func Encode(w io.Writer, h Header, body io.WriterTo) (int64, error) {
	var scratch []byte
	if body != nil {
		var buf writeBuffer
		if _, err := body.WriteTo(&buf); err != nil {
			return 0, err
		}
		scratch = buf.Bytes()
	}

	h.Length = uint16(HeaderLen + len(scratch))

	n, err := h.WriteTo(w)
	if err != nil {
		return n, err
	}

	if len(scratch) == 0 {
		return n, nil
	}

	bn, err := w.Write(scratch)
	return n + int64(bn), err
}

// Reader reads a stream of complete Messages from an underlying
// io.Reader, one at a time. It is the sole place in the core that is
// allowed to read directly off a connection's socket: every message it
// returns has already consumed precisely Header.Length bytes, so a
// caller can never observe a partial message nor leave trailing bytes
// of one message mixed into the next.
type Reader struct {
	r io.Reader
}

// NewReader wraps r in a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadMessage blocks until a full message has been read, an error
// occurs, or the stream reaches EOF. A non-HELLO message carrying a
// header version other than Version is reported via
// ErrUnsupportedVersion after the message has still been fully drained
// from the stream, so that the connection's byte alignment is
// preserved even when the caller chooses to reject the message.
func (fr *Reader) ReadMessage() (Message, error) {
	var h Header
	if _, err := h.ReadFrom(fr.r); err != nil {
		return Message{}, err
	}

	body := make([]byte, h.BodyLen())
	if len(body) > 0 {
		if _, err := io.ReadFull(fr.r, body); err != nil {
			return Message{}, err
		}
	}

	msg := Message{Header: h, Body: body}

	if h.Version != Version && h.Type != TypeHello {
		return msg, ErrUnsupportedVersion
	}

	return msg, nil
}

// writeBuffer is a tiny growable byte buffer that avoids pulling in
// bytes.Buffer's full surface for the single Write/Bytes pattern
// Encode needs.
type writeBuffer struct {
	b []byte
}

func (w *writeBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func (w *writeBuffer) Bytes() []byte {
	return w.b
}
