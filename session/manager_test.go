package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/room4-2/OpenCallGate/bridge"
	"github.com/room4-2/OpenCallGate/config"
	"github.com/room4-2/OpenCallGate/realtime"
)

// stubConn satisfies bridge.ClientConn with a read that blocks until the
// connection is "closed" by the test.
type stubConn struct {
	unblock chan struct{}
}

func newStubConn() *stubConn {
	return &stubConn{unblock: make(chan struct{})}
}

func (c *stubConn) ReadMessage() (int, []byte, error) {
	<-c.unblock
	return 0, nil, errors.New("connection closed")
}

func (c *stubConn) WriteMessage(messageType int, data []byte) error               { return nil }
func (c *stubConn) WriteControl(messageType int, data []byte, t time.Time) error { return nil }
func (c *stubConn) SetReadDeadline(t time.Time) error                            { return nil }
func (c *stubConn) SetWriteDeadline(t time.Time) error                           { return nil }

type stubSession struct {
	closed chan struct{}
}

func newStubSession() *stubSession {
	return &stubSession{closed: make(chan struct{})}
}

func (s *stubSession) SendAudio(ctx context.Context, audio []byte, commit bool) error { return nil }

func (s *stubSession) Next(ctx context.Context) (realtime.SessionEvent, error) {
	select {
	case <-s.closed:
		return nil, realtime.ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *stubSession) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		RedisURL:       "127.0.0.1:1", // nothing listens here; manager runs without redis
		MaxSessions:    2,
		SessionTimeout: 30 * time.Minute,
	}
}

func stubOpener() bridge.SessionOpener {
	return func(ctx context.Context) (bridge.ModelSession, error) {
		return newStubSession(), nil
	}
}

func TestCreateAndRemoveBridge(t *testing.T) {
	sm, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer sm.Shutdown()

	id, b, err := sm.CreateBridge(context.Background(), newStubConn(), stubOpener(), "cc-1")
	if err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}
	if id == "" {
		t.Fatal("bridge id must not be empty")
	}
	if got, ok := sm.GetBridge(id); !ok || got != b {
		t.Fatal("created bridge not retrievable by id")
	}
	if n := sm.GetActiveBridgeCount(); n != 1 {
		t.Fatalf("active count = %d, want 1", n)
	}

	_ = b.Close(nil)
	sm.RemoveBridge(context.Background(), id)

	if _, ok := sm.GetBridge(id); ok {
		t.Fatal("removed bridge still retrievable")
	}
	if n := sm.GetActiveBridgeCount(); n != 0 {
		t.Fatalf("active count after remove = %d, want 0", n)
	}
}

func TestCreateBridgeRespectsLimit(t *testing.T) {
	sm, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer sm.Shutdown()

	for i := 0; i < 2; i++ {
		if _, _, err := sm.CreateBridge(context.Background(), newStubConn(), stubOpener(), ""); err != nil {
			t.Fatalf("bridge %d failed: %v", i, err)
		}
	}
	if _, _, err := sm.CreateBridge(context.Background(), newStubConn(), stubOpener(), ""); err == nil {
		t.Fatal("expected creation to fail at the session limit")
	}
}

func TestCreateBridgeOpenFailureNotRegistered(t *testing.T) {
	sm, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer sm.Shutdown()

	failing := func(ctx context.Context) (bridge.ModelSession, error) {
		return nil, errors.New("model unavailable")
	}
	if _, _, err := sm.CreateBridge(context.Background(), newStubConn(), failing, ""); err == nil {
		t.Fatal("expected open failure to propagate")
	}
	if n := sm.GetActiveBridgeCount(); n != 0 {
		t.Fatalf("failed open must not register a bridge, count = %d", n)
	}
}

func TestCleanupInactiveBridges(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTimeout = 10 * time.Millisecond
	sm, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer sm.Shutdown()

	id, b, err := sm.CreateBridge(context.Background(), newStubConn(), stubOpener(), "")
	if err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	sm.CleanupInactiveBridges(context.Background())

	if _, ok := sm.GetBridge(id); ok {
		t.Fatal("stale bridge should have been removed")
	}
	if !b.IsClosed() {
		t.Fatal("stale bridge should have been closed")
	}
}

func TestShutdownClosesEverything(t *testing.T) {
	sm, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	_, b, err := sm.CreateBridge(context.Background(), newStubConn(), stubOpener(), "")
	if err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}

	sm.Shutdown()

	if !b.IsClosed() {
		t.Fatal("shutdown must close live bridges")
	}
	if n := sm.GetActiveBridgeCount(); n != 0 {
		t.Fatalf("active count after shutdown = %d, want 0", n)
	}
}
