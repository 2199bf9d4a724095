package dhcpd

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/log"
)

// pollInterval bounds how long Run's read blocks between checking ctx, the
// direct analogue of the source dispatcher's 100ms poll of its stop flag.
const pollInterval = 100 * time.Millisecond

// Server owns one Pool and drives it against a Transport until stopped.
// All state mutation happens on the single goroutine that executes Run, so
// Pool needs no internal locking.
type Server struct {
	Pool      *Pool
	Transport Transport

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Start validates ifaceName, opens a Transport bound to it when one was not
// already assigned to s.Transport (tests typically preassign a fake), and
// launches the serving goroutine, returning once it is running.
// ErrAlreadyRunning is returned if the server is already running;
// ErrInvalidInterface is returned if ifaceName cannot be resolved.
func (s *Server) Start(ctx context.Context, ifaceName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	if ifaceName != "" {
		iface, err := net.InterfaceByName(ifaceName)
		if err != nil {
			return fmt.Errorf("%w: %s: %s", ErrInvalidInterface, ifaceName, err)
		}
		if s.Pool != nil {
			s.Pool.SetDeviceIndex(iface.Index)
		}
	}

	if s.Transport == nil {
		transport, err := NewUDPTransport(ifaceName)
		if err != nil {
			return err
		}
		s.Transport = transport
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(runCtx)
	}()

	return nil
}

// Stop signals the serving goroutine, waits for it to exit, and closes
// s.Transport, whether Start opened it or it was preassigned.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	if err := s.Transport.Close(); err != nil {
		log.Error("dhcpd: closing transport: %s", err)
	}
}

// Run drives the receive/dispatch/send loop until ctx is cancelled. It
// blocks the calling goroutine; callers that want a background server
// should use Start/Stop instead.
func (s *Server) Run(ctx context.Context) {
	log.Info("dhcpd: serving")
	defer log.Info("dhcpd: stopped")

	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		readCtx, cancel := context.WithTimeout(ctx, pollInterval)
		n, addr, err := s.Transport.ReadFrom(readCtx, buf)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if isTimeout(err) {
				continue
			}
			log.Error("dhcpd: reading request: %s", err)
			continue
		}

		reply, shouldSend := Dispatch(s.Pool, time.Now(), buf[:n], addr)
		if !shouldSend {
			continue
		}

		if err = s.Transport.WriteTo(reply, nil); err != nil {
			log.Error("dhcpd: sending reply to %v: %s", addr, err)
		}
	}
}

func isTimeout(err error) bool {
	type timeoutter interface {
		Timeout() bool
	}
	t, ok := err.(timeoutter)
	return ok && t.Timeout()
}
