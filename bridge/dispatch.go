package bridge

import (
	"context"
	"errors"
	"log"

	"github.com/gorilla/websocket"

	"github.com/room4-2/OpenCallGate/messages"
	"github.com/room4-2/OpenCallGate/realtime"
)

const logTranscriptLimit = 200

// dispatchLoop is the outbound pump's goroutine body. It closes done
// before initiating teardown so a concurrent Close never waits on it.
func (b *Bridge) dispatchLoop(ctx context.Context) {
	err := b.dispatch(ctx)
	close(b.done)
	if err != nil && !b.IsClosed() {
		log.Printf("❌ Session event stream failed: %v", err)
		_ = b.Close(err)
	}
}

// dispatch drains the model session's event stream and applies each event
// to the client connection. Per-event failures are logged and skipped;
// only a broken stream or a broken connection ends the loop.
func (b *Bridge) dispatch(ctx context.Context) error {
	log.Println("🔊 Handling realtime session events")
	for {
		event, err := b.session.Next(ctx)
		if err != nil {
			if b.IsClosed() || errors.Is(err, context.Canceled) || errors.Is(err, realtime.ErrSessionClosed) {
				return nil
			}
			return err
		}
		b.touch()
		if err := b.handleEvent(event); err != nil {
			return err
		}
	}
}

func (b *Bridge) handleEvent(event realtime.SessionEvent) error {
	switch ev := event.(type) {
	case realtime.AudioEvent:
		if len(ev.Data) == 0 {
			return nil
		}
		return b.sendFrame(b.codec.EncodeOutbound(ev.Data))

	case realtime.AudioInterruptedEvent:
		log.Println("🔇 Barge-in detected, stopping client playback")
		return b.sendFrame(b.codec.EncodeInterrupt())

	case realtime.ErrorEvent:
		log.Printf("❌ Model session error: code=%q message=%q", ev.Code, ev.Message)

	case realtime.ToolStartEvent:
		log.Printf("🔧 Tool call started: %s %s", ev.Tool, truncate(ev.Info, logTranscriptLimit))

	case realtime.RawModelEvent:
		b.logRawEvent(ev)

	case realtime.AudioEndEvent,
		realtime.AgentStartEvent,
		realtime.AgentEndEvent,
		realtime.HandoffEvent,
		realtime.ToolEndEvent,
		realtime.HistoryUpdatedEvent,
		realtime.HistoryAddedEvent,
		realtime.GuardrailTrippedEvent,
		realtime.InputAudioTimeoutEvent:
		// recognized, nothing to forward

	default:
		log.Printf("⚠️ Unhandled session event type: %s", event.EventType())
	}
	return nil
}

// logRawEvent surfaces the transcript completions buried in passthrough
// events; everything else stays silent.
func (b *Bridge) logRawEvent(ev realtime.RawModelEvent) {
	switch ev.RawType() {
	case realtime.ServerEventOutputTranscriptDone:
		log.Printf("📝 Assistant said: %s", truncate(ev.Transcript(), logTranscriptLimit))
	case realtime.ServerEventInputTranscriptDone:
		log.Printf("📝 Caller said: %s", truncate(ev.Transcript(), logTranscriptLimit))
	}
}

// sendFrame marshals and writes one control frame to the client. A
// marshal failure is a per-event problem and is swallowed after logging;
// a write failure breaks the connection and is returned.
func (b *Bridge) sendFrame(frame *messages.ControlFrame) error {
	data, err := b.codec.MarshalFrame(frame)
	if err != nil {
		log.Printf("⚠️ Failed to encode control frame: %v", err)
		return nil
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = b.conn.SetWriteDeadline(deadlineFromNow())
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
