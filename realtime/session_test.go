package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelStub is a minimal realtime endpoint: it records client messages and
// serves scripted server events.
type modelStub struct {
	server   *httptest.Server
	received chan map[string]any
	outgoing chan string
	apiKeys  chan string
}

func newModelStub(t *testing.T) *modelStub {
	t.Helper()
	stub := &modelStub{
		received: make(chan map[string]any, 16),
		outgoing: make(chan string, 16),
		apiKeys:  make(chan string, 1),
	}
	upgrader := websocket.Upgrader{}

	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.apiKeys <- r.Header.Get("api-key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("stub upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		go func() {
			for msg := range stub.outgoing {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					return
				}
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Errorf("stub received non-JSON message: %v", err)
				return
			}
			stub.received <- msg
		}
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *modelStub) endpoint() string {
	return "ws://" + strings.TrimPrefix(s.server.URL, "http://")
}

func (s *modelStub) nextMessage(t *testing.T) map[string]any {
	t.Helper()
	select {
	case msg := <-s.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client message")
		return nil
	}
}

func dialStub(t *testing.T, stub *modelStub) *Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx,
		Config{Endpoint: stub.endpoint(), APIKey: "test-key"},
		Settings{
			Model:              "gpt-realtime",
			Voice:              "alloy",
			Instructions:       "Answer the phone.",
			TranscriptionModel: "gpt-4o-mini-transcribe",
			Language:           "en",
		})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestDialConfiguresSession(t *testing.T) {
	stub := newModelStub(t)
	dialStub(t, stub)

	assert.Equal(t, "test-key", <-stub.apiKeys)

	msg := stub.nextMessage(t)
	assert.Equal(t, "session.update", msg["type"])

	session, ok := msg["session"].(map[string]any)
	require.True(t, ok, "session.update missing session body")
	assert.Equal(t, "gpt-realtime", session["model"])
	assert.Equal(t, "alloy", session["voice"])
	assert.Equal(t, "pcm16", session["input_audio_format"])
	assert.Equal(t, "pcm16", session["output_audio_format"])

	td, ok := session["turn_detection"].(map[string]any)
	require.True(t, ok, "turn_detection missing")
	assert.Equal(t, "semantic_vad", td["type"])
	assert.Equal(t, true, td["create_response"])
	assert.Equal(t, true, td["interrupt_response"])

	tr, ok := session["input_audio_transcription"].(map[string]any)
	require.True(t, ok, "input_audio_transcription missing")
	assert.Equal(t, "gpt-4o-mini-transcribe", tr["model"])
	assert.Equal(t, "en", tr["language"])
}

func TestSendAudioAppendsAndCommits(t *testing.T) {
	stub := newModelStub(t)
	sess := dialStub(t, stub)
	stub.nextMessage(t) // session.update

	require.NoError(t, sess.SendAudio(context.Background(), []byte("pcm"), false))
	msg := stub.nextMessage(t)
	assert.Equal(t, "input_audio_buffer.append", msg["type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("pcm")), msg["audio"])

	require.NoError(t, sess.SendAudio(context.Background(), []byte("end"), true))
	assert.Equal(t, "input_audio_buffer.append", stub.nextMessage(t)["type"])
	assert.Equal(t, "input_audio_buffer.commit", stub.nextMessage(t)["type"])
}

func TestStartResponseSendsInstructions(t *testing.T) {
	stub := newModelStub(t)
	sess := dialStub(t, stub)
	stub.nextMessage(t) // session.update

	require.NoError(t, sess.StartResponse(context.Background(), "Say hello."))
	msg := stub.nextMessage(t)
	assert.Equal(t, "response.create", msg["type"])
	resp, ok := msg["response"].(map[string]any)
	require.True(t, ok, "response body missing")
	assert.Equal(t, "Say hello.", resp["instructions"])
}

func TestNextDeliversTranslatedEvents(t *testing.T) {
	stub := newModelStub(t)
	sess := dialStub(t, stub)

	stub.outgoing <- `{"type":"response.output_audio.delta","item_id":"i1","delta":"` +
		base64.StdEncoding.EncodeToString([]byte("audio")) + `"}`
	stub.outgoing <- `{"type":"input_audio_buffer.speech_started"}`

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event, err := sess.Next(ctx)
	require.NoError(t, err)
	audio, ok := event.(AudioEvent)
	require.True(t, ok, "expected AudioEvent, got %T", event)
	assert.Equal(t, []byte("audio"), audio.Data)

	event, err = sess.Next(ctx)
	require.NoError(t, err)
	assert.IsType(t, AudioInterruptedEvent{}, event)
}

func TestCloseUnblocksNext(t *testing.T) {
	stub := newModelStub(t)
	sess := dialStub(t, stub)

	errCh := make(chan error, 1)
	go func() {
		_, err := sess.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close(), "second close must be a no-op")

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not unblock after Close")
	}

	assert.ErrorIs(t, sess.SendAudio(context.Background(), []byte("late"), false), ErrSessionClosed)
}
