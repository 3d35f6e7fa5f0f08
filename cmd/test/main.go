package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Control frame shape matching the media endpoint
type ControlFrame struct {
	Type      string        `json:"type"`
	AudioData *AudioPayload `json:"audioData"`
	StopAudio *struct{}     `json:"stopAudio,omitempty"`
}

type AudioPayload struct {
	Data string `json:"data"`
}

// AudioPlayer streams audio via sox
type AudioPlayer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	mu     sync.Mutex
	closed bool
}

func NewAudioPlayer() *AudioPlayer {
	cmd := exec.Command("sox",
		"-t", "raw",
		"-r", "24000",
		"-b", "16",
		"-c", "1",
		"-e", "signed-integer",
		"-",
		"-d",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Println("sox stdin error:", err)
		return nil
	}

	if err := cmd.Start(); err != nil {
		log.Println("sox start error:", err)
		return nil
	}

	return &AudioPlayer{cmd: cmd, stdin: stdin}
}

func (p *AudioPlayer) Play(audioData []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.stdin == nil {
		return
	}
	p.stdin.Write(audioData)
}

func (p *AudioPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.stdin != nil {
		p.stdin.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Wait()
	}
}

func main() {
	// Flags
	serverURL := flag.String("server", "ws://localhost:8080/v1/realtime/realtime", "Media endpoint URL")
	audioFile := flag.String("file", "examples/user.pcm", "Audio file to send (PCM or WAV)")
	callID := flag.String("call-id", "local-test-call", "Value for the call connection header")
	flag.Parse()

	log.Printf("🔌 Connecting to %s...", *serverURL)

	header := http.Header{}
	header.Set("x-ms-call-connection-id", *callID)
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, header)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Println("✅ Connected!")

	// Setup audio player
	player := NewAudioPlayer()
	if player == nil {
		log.Fatal("Failed to create audio player (is sox installed?)")
	}
	defer player.Close()

	// Handle interrupt
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})

	// Read frames from server
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}

			var frame ControlFrame
			if err := json.Unmarshal(message, &frame); err != nil {
				log.Println("Parse error:", err)
				continue
			}

			switch frame.Type {
			case "AudioData":
				if frame.AudioData == nil {
					continue
				}
				audioBytes, err := base64.StdEncoding.DecodeString(frame.AudioData.Data)
				if err == nil {
					log.Printf("🔊 Playing audio: %d bytes", len(audioBytes))
					player.Play(audioBytes)
				}

			case "StopAudio":
				log.Println("🔇 Stop audio (barge-in)")

			default:
				log.Printf("❓ Unknown frame type: %s", frame.Type)
			}
		}
	}()

	// Give the agent a moment to speak its opener
	time.Sleep(500 * time.Millisecond)

	// Load and send audio file
	log.Printf("📤 Sending audio file: %s", *audioFile)

	audioData, err := loadAudioFile(*audioFile)
	if err != nil {
		log.Fatalf("Failed to load audio: %v", err)
	}

	// Send audio in chunks (simulating real-time streaming)
	chunkSize := 4800 // 100ms at 24kHz
	for i := 0; i < len(audioData); i += chunkSize {
		end := i + chunkSize
		if end > len(audioData) {
			end = len(audioData)
		}
		chunk := audioData[i:end]

		frame := ControlFrame{
			Type:      "AudioData",
			AudioData: &AudioPayload{Data: base64.StdEncoding.EncodeToString(chunk)},
		}
		data, err := json.Marshal(frame)
		if err != nil {
			log.Printf("Encode error: %v", err)
			break
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("Send error: %v", err)
			break
		}

		log.Printf("📤 Sent chunk %d/%d (%d bytes)", i/chunkSize+1, (len(audioData)+chunkSize-1)/chunkSize, len(chunk))

		// Simulate real-time streaming pace
		time.Sleep(100 * time.Millisecond)
	}

	log.Println("✅ Audio sent, waiting for response...")

	// Wait for response or interrupt
	select {
	case <-done:
		log.Println("Connection closed")
	case <-interrupt:
		log.Println("\n👋 Interrupted, closing...")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-time.After(60 * time.Second):
		log.Println("⏰ Timeout waiting for response")
	}
}

// loadAudioFile loads PCM or WAV file and returns raw PCM bytes
func loadAudioFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Check if it's a WAV file (starts with "RIFF")
	if len(data) > 44 && string(data[0:4]) == "RIFF" {
		// Skip WAV header (44 bytes for standard WAV)
		log.Println("📁 Detected WAV file, skipping header")
		return data[44:], nil
	}

	// Assume raw PCM
	log.Println("📁 Detected raw PCM file")
	return data, nil
}
