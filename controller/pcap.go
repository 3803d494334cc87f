package controller

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/flowbridge/ofcore/frame"
	"github.com/flowbridge/ofcore/hostrt"
)

// pcapWriter is an optional per-connection capture decorator: for both
// directions of an accepted socket, it re-frames the byte stream on
// the OpenFlow length field and appends each complete message to a
// single per-connection file. A frame.ErrUnsupportedVersion on either
// direction disables capture for the rest of the connection's life,
// rather than failing the connection itself.
type pcapWriter struct {
	mu       sync.Mutex
	f        *os.File
	disabled bool
	log      hostrt.Logger
}

// newPcapWriter opens (creating dir if needed) the capture file for a
// newly accepted peer, named
// YYYY-MM-DD-HHMMxM_<peer-ip-underscored>_<peer-port>.pcap. A failure
// to open the file disables capture rather than aborting the accept.
func newPcapWriter(dir string, peer net.Addr) *pcapWriter {
	log := hostrt.GetLogger("controller.pcap")

	host, port, err := net.SplitHostPort(peer.String())
	if err != nil {
		host, port = peer.String(), "0"
	}

	name := fmt.Sprintf("%s_%s_%s.pcap",
		time.Now().Format("2006-01-02-0304PM"),
		strings.ReplaceAll(host, ".", "_"),
		port,
	)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Errorf("pcap: cannot create capture dir %s: %s", dir, err)
		return &pcapWriter{disabled: true, log: log}
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		log.Errorf("pcap: cannot create capture file: %s", err)
		return &pcapWriter{disabled: true, log: log}
	}

	return &pcapWriter{f: f, log: log}
}

// captureInbound records one fully-framed message read from the
// switch. msg's body has already had its length validated by
// frame.Reader, so re-framing here is just re-serializing the header
// the reader already parsed.
func (p *pcapWriter) captureInbound(msg frame.Message) {
	p.capture(msg)
}

// captureOutbound records one message this side sent, before it is
// handed to the socket or the deferred sender.
func (p *pcapWriter) captureOutbound(msg frame.Message) {
	p.capture(msg)
}

func (p *pcapWriter) capture(msg frame.Message) {
	if p == nil || p.disabled {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := msg.Header.WriteTo(p.f); err != nil {
		p.log.Errorf("pcap: write failed, disabling capture: %s", err)
		p.disabled = true
		return
	}
	if _, err := p.f.Write(msg.Body); err != nil {
		p.log.Errorf("pcap: write failed, disabling capture: %s", err)
		p.disabled = true
	}
}

// onVersionMismatch disables capture for the rest of the connection's
// life: a frame version mismatch means the byte stream can no longer
// be trusted to re-frame correctly.
func (p *pcapWriter) onVersionMismatch() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.disabled = true
	p.mu.Unlock()
}

func (p *pcapWriter) Close() error {
	if p == nil || p.f == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.f.Close()
}
