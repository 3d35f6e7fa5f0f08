package bridge

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/room4-2/OpenCallGate/messages"
	"github.com/room4-2/OpenCallGate/realtime"
)

const writeTimeout = 10 * time.Second

// ClientConn is the telephony-side duplex socket the bridge borrows from
// the transport layer. *websocket.Conn satisfies it.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// ModelSession is the model-side collaborator the bridge owns for the
// duration of one call.
type ModelSession interface {
	SendAudio(ctx context.Context, audio []byte, commit bool) error
	Next(ctx context.Context) (realtime.SessionEvent, error)
	Close() error
}

// SessionOpener opens a model session. On error no session is returned;
// partially opened resources must already be released.
type SessionOpener func(ctx context.Context) (ModelSession, error)

// Bridge owns one call's duplex audio relay: a client connection on one
// side, a model session on the other, two pumps in between. The inbound
// pump runs on the caller's goroutine; the outbound dispatcher runs as a
// single background goroutine started at open time. Connection writes
// happen only from the dispatcher and from Close, serialized by writeMu;
// the inbound pump never writes.
type Bridge struct {
	conn    ClientConn
	session ModelSession
	codec   Codec

	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool

	lastActivity atomic.Int64
}

// Open constructs a bridge over an already-accepted connection. It opens
// the model session and starts the outbound dispatcher. On open failure
// nothing is leaked: no goroutine runs and no session stays open.
func Open(ctx context.Context, conn ClientConn, open SessionOpener) (*Bridge, error) {
	session, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open model session: %w", err)
	}

	// The dispatcher must outlive the handler's request context; its
	// lifetime is bound to the session, ended by Close.
	runCtx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		conn:    conn,
		session: session,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	b.touch()

	go b.dispatchLoop(runCtx)
	return b, nil
}

// RunInboundPump reads control frames from the connection and forwards
// audio to the model session, in arrival order, until the connection
// closes or errors. Malformed and unknown frames are logged and skipped;
// only structural failures end the loop. Returns nil on a normal client
// close.
func (b *Bridge) RunInboundPump(ctx context.Context) error {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if b.IsClosed() || isNormalClose(err) {
				return nil
			}
			return fmt.Errorf("client connection read failed: %w", err)
		}
		b.touch()

		frame, err := b.codec.ParseFrame(data)
		if err != nil {
			log.Printf("⚠️ Skipping malformed control frame: %v", err)
			continue
		}

		switch frame.Type {
		case messages.KindAudioData:
			audio, err := b.codec.DecodeInbound(frame)
			if err != nil {
				log.Printf("⚠️ Skipping audio frame: %v", err)
				continue
			}
			if len(audio) == 0 {
				continue
			}
			if err := b.session.SendAudio(ctx, audio, false); err != nil {
				return fmt.Errorf("failed to forward audio to model session: %w", err)
			}

		case messages.KindStopAudio:
			log.Println("🔇 Client requested audio stop")

		default:
			log.Printf("⚠️ Unknown data type received over WebSocket: %q", frame.Type)
		}
	}
}

// Close tears down both sides exactly once: it exits the model session,
// cancels and awaits the dispatcher, sends a single close frame to the
// client, and expires the connection's read deadline so a pump blocked in
// ReadMessage returns. A nil cause takes the normal-closure path; any
// other cause takes the internal-error path. Repeated calls are no-ops.
func (b *Bridge) Close(cause error) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()

	// Closing the session unblocks a dispatcher waiting on the stream
	sessionErr := b.session.Close()
	<-b.done

	code := websocket.CloseNormalClosure
	reason := "Ending connection normally"
	if cause != nil {
		code = websocket.CloseInternalServerErr
		reason = "Internal server error"
	}
	b.writeMu.Lock()
	_ = b.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		deadlineFromNow(),
	)
	b.writeMu.Unlock()

	// Expire the read side so an inbound pump blocked on a silent client
	// observes the teardown instead of waiting for it to speak
	_ = b.conn.SetReadDeadline(time.Now())

	return sessionErr
}

// IsClosed reports whether Close has been called
func (b *Bridge) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// LastActivity returns the time of the last frame seen in either direction
func (b *Bridge) LastActivity() time.Time {
	return time.Unix(0, b.lastActivity.Load())
}

func (b *Bridge) touch() {
	b.lastActivity.Store(time.Now().UnixNano())
}

func deadlineFromNow() time.Time {
	return time.Now().Add(writeTimeout)
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
	)
}
