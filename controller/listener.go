package controller

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/flowbridge/ofcore/deferred"
	"github.com/flowbridge/ofcore/hostrt"
)

// DefaultPort is the well-known OpenFlow controller port.
const DefaultPort = 6653

// DefaultAddress is the listener's default bind address.
const DefaultAddress = "0.0.0.0"

// Server owns one listening socket, accepts switches, and hands each
// accepted connection off to its own goroutine. Rather than
// cooperatively multiplexing the listener and every connection's
// socket on one select() loop, Server lets the Go runtime's netpoller
// do that multiplexing instead — each Connection.Serve blocks
// independently, and accept() blocks independently, so there is no
// shared tick to reason about.
type Server struct {
	Name string

	addr    string
	arbiter Arbiter
	sender  *deferred.Sender
	metrics *Metrics
	log     hostrt.Logger
	runtime *hostrt.Runtime
	pcapDir string

	listener net.Listener
}

// Config carries the construction parameters the launch(port, address,
// name) CLI entry point accepts.
type Config struct {
	Name    string
	Address string
	Port    int

	// PcapDir, if non-empty, turns on per-connection pcap capture
	// writing files under this directory.
	PcapDir string
}

// NewServer constructs a Server. arbiter decides which Nexus newly
// handshaked connections belong to; rt supplies the running flag the
// accept loop polls. ListenAndServe binds straight away; it does not
// wait for rt's GoingUp signal.
func NewServer(cfg Config, arbiter Arbiter, rt *hostrt.Runtime, metrics *Metrics) *Server {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	return &Server{
		Name:    cfg.Name,
		addr:    fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		arbiter: arbiter,
		sender:  deferred.NewSender(hostrt.GetLogger("controller.deferred")),
		metrics: metrics,
		log:     hostrt.GetLogger("controller.listener"),
		runtime: rt,
		pcapDir: cfg.PcapDir,
	}
}

// listenConfig enables SO_REUSEADDR the way a standalone controller
// binary restarted against the same port needs, so a socket still in
// TIME_WAIT from a prior run doesn't block startup. A fixed listen
// backlog isn't reachable through net.ListenConfig without dropping to
// raw syscalls for the listen() call itself (the runtime's netpoller
// owns that); DESIGN.md records this as an accepted, deliberate gap
// rather than a silent one.
var listenConfig = net.ListenConfig{
	Control: func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	},
}

// ListenAndServe binds the listening socket and accepts connections
// until ctx is canceled, the runtime's running flag goes false, or the
// listener itself errors, which aborts the loop.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := listenConfig.Listen(ctx, "tcp", s.addr)
	if err != nil {
		s.log.Errorf("listener: bind failed on %s: %s", s.addr, err)
		return fmt.Errorf("controller: bind %s: %w", s.addr, err)
	}
	s.listener = ln
	defer s.listener.Close()
	defer s.sender.Stop()

	s.log.Infof("listener: %q accepting on %s", s.Name, s.addr)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		if s.runtime != nil && !s.runtime.Running() {
			s.log.Infof("listener: %q stopping, runtime is going down", s.Name)
			return nil
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.log.Errorf("listener: %q accept failed, aborting: %s", s.Name, err)
			return err
		}

		if s.metrics != nil {
			s.metrics.connectionsAccepted.Inc()
		}

		var pw *pcapWriter
		if s.pcapDir != "" {
			pw = newPcapWriter(s.pcapDir, conn.RemoteAddr())
		}

		c := newConnection(conn, s.arbiter, s.sender, s.metrics, pw)
		go c.Serve()
	}
}
