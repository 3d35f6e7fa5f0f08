package realtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	inputAudioFormat  = "pcm16"
	outputAudioFormat = "pcm16"
	handshakeTimeout  = 10 * time.Second
	sendTimeout       = 10 * time.Second
)

// EventStream is the ordered, asynchronous event source a bridge consumes.
// Next blocks until an event arrives, the stream breaks, or ctx is done.
// Closing the underlying session unblocks a pending Next.
type EventStream interface {
	Next(ctx context.Context) (SessionEvent, error)
}

// Settings fixes the model session configuration at open time
type Settings struct {
	Model              string
	Voice              string
	Instructions       string
	TranscriptionModel string
	Language           string
	Tools              []Tool
}

// Config holds the endpoint credentials for the realtime service
type Config struct {
	Endpoint string // Azure OpenAI resource endpoint, with or without scheme
	APIKey   string
}

// Session is a live websocket connection to the hosted realtime model.
// It is safe for one reader (Next) and concurrent writers (SendAudio).
type Session struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// Dial connects to the realtime endpoint and configures the session with
// the given settings. On any failure after the websocket is established
// the connection is closed before the error is returned.
func Dial(ctx context.Context, cfg Config, settings Settings) (*Session, error) {
	// Plain ws:// is honored for local endpoints; anything else dials wss
	scheme := "wss"
	endpoint := cfg.Endpoint
	if strings.HasPrefix(endpoint, "ws://") {
		scheme = "ws"
		endpoint = strings.TrimPrefix(endpoint, "ws://")
	}
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "wss://")
	endpoint = strings.TrimSuffix(endpoint, "/")
	url := fmt.Sprintf("%s://%s/openai/v1/realtime?model=%s", scheme, endpoint, settings.Model)

	header := http.Header{}
	header.Set("api-key", cfg.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to realtime endpoint: %w", err)
	}

	s := &Session{conn: conn}
	if err := s.sendJSON(sessionUpdateMessage{
		Type:    "session.update",
		Session: settingsToConfig(settings),
	}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to configure session: %w", err)
	}

	log.Printf("✅ Connected to realtime model session (%s)", settings.Model)
	return s, nil
}

func settingsToConfig(settings Settings) sessionConfig {
	return sessionConfig{
		Model:             settings.Model,
		Modalities:        []string{"audio"},
		Instructions:      settings.Instructions,
		Voice:             settings.Voice,
		InputAudioFormat:  inputAudioFormat,
		OutputAudioFormat: outputAudioFormat,
		InputAudioTranscription: &transcriptionConfig{
			Model:    settings.TranscriptionModel,
			Language: settings.Language,
		},
		TurnDetection: &turnDetection{
			Type:              "semantic_vad",
			Eagerness:         "auto",
			CreateResponse:    true,
			InterruptResponse: true,
		},
		Tools:      settings.Tools,
		ToolChoice: "auto",
		Speed:      1.0,
	}
}

// SendAudio pushes raw PCM bytes into the session's input buffer. With
// commit=false the bytes extend the current utterance; commit=true marks
// a turn boundary as well.
func (s *Session) SendAudio(ctx context.Context, audio []byte, commit bool) error {
	if err := s.sendJSON(audioAppendMessage{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(audio),
	}); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	if commit {
		if err := s.sendJSON(audioCommitMessage{Type: "input_audio_buffer.commit"}); err != nil {
			return fmt.Errorf("failed to commit audio: %w", err)
		}
	}
	return nil
}

// StartResponse asks the model to speak unprompted. instructions steer
// just this one response; pass "" to let the session instructions apply.
func (s *Session) StartResponse(ctx context.Context, instructions string) error {
	msg := responseCreateMessage{Type: "response.create"}
	if instructions != "" {
		msg.Response = &responseParams{Instructions: instructions}
	}
	if err := s.sendJSON(msg); err != nil {
		return fmt.Errorf("failed to start response: %w", err)
	}
	return nil
}

// Next returns the next session event in arrival order. It returns an
// error when the stream breaks or the session is closed; Close unblocks
// a Next that is waiting on the socket.
func (s *Session) Next(ctx context.Context) (SessionEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.IsClosed() {
				return nil, ErrSessionClosed
			}
			return nil, fmt.Errorf("realtime stream read failed: %w", err)
		}

		event, err := translateServerEvent(data)
		if err != nil {
			// Malformed single event, not a broken stream
			log.Printf("⚠️ Skipping malformed realtime event: %v", err)
			continue
		}
		return event, nil
	}
}

// Close terminates the session exactly once. Safe to call concurrently
// and repeatedly.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	_ = s.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	s.writeMu.Unlock()

	return s.conn.Close()
}

// IsClosed reports whether Close has been called
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) sendJSON(v any) error {
	if s.IsClosed() {
		return ErrSessionClosed
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func decodeBase64(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(data)
}
