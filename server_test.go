package dhcpd

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport that never actually produces a
// frame, so Run just idles on its pollInterval ticks until Stop cancels it.
type fakeTransport struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeTransport) ReadFrom(ctx context.Context, buf []byte) (int, net.Addr, error) {
	<-ctx.Done()
	return 0, nil, context.DeadlineExceeded
}

func (f *fakeTransport) WriteTo(buf []byte, addr net.Addr) error {
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestServer_StartStop(t *testing.T) {
	transport := &fakeTransport{}
	srv := &Server{Pool: NewPool(), Transport: transport}

	require.NoError(t, srv.Start(context.Background(), ""))

	srv.Stop()
	assert.True(t, transport.isClosed())
}

func TestServer_StartTwiceReturnsErrAlreadyRunning(t *testing.T) {
	srv := &Server{Pool: NewPool(), Transport: &fakeTransport{}}

	require.NoError(t, srv.Start(context.Background(), ""))
	defer srv.Stop()

	err := srv.Start(context.Background(), "")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestServer_StartInvalidInterface(t *testing.T) {
	srv := &Server{Pool: NewPool(), Transport: &fakeTransport{}}

	err := srv.Start(context.Background(), "no-such-interface-xyz")
	assert.ErrorIs(t, err, ErrInvalidInterface)
}

func TestServer_StopAfterStopIsANoop(t *testing.T) {
	transport := &fakeTransport{}
	srv := &Server{Pool: NewPool(), Transport: transport}

	require.NoError(t, srv.Start(context.Background(), ""))
	srv.Stop()
	assert.True(t, transport.isClosed())

	// A second Stop must not panic or block: the server is already down.
	srv.Stop()
}

func TestServer_StopJoinsRunGoroutine(t *testing.T) {
	srv := &Server{Pool: NewPool(), Transport: &fakeTransport{}}
	require.NoError(t, srv.Start(context.Background(), ""))

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
}

func TestServer_StartAfterContextCancelled(t *testing.T) {
	// Starting with an already-expired ctx should still succeed and then
	// exit the Run loop almost immediately, since it is cancel's child.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := &fakeTransport{}
	srv := &Server{Pool: NewPool(), Transport: transport}
	require.NoError(t, srv.Start(ctx, ""))

	srv.wg.Wait()
	srv.Stop()
	assert.True(t, transport.isClosed())
}
