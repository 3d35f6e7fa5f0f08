package calls

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const apiVersion = "2024-09-15"

// Answerer answers an incoming call and starts bidirectional media
// streaming toward the audio websocket.
type Answerer interface {
	AnswerCall(ctx context.Context, incomingCallContext, callbackURI string) (*AnswerResult, error)
}

// AnswerResult identifies the call connection created by AnswerCall
type AnswerResult struct {
	CallConnectionID string `json:"callConnectionId"`
	CorrelationID    string `json:"correlationId"`
}

// Client talks to the Azure Communication Services Call Automation REST
// API, authenticating requests with the connection string's access key.
type Client struct {
	endpoint     *url.URL
	accessKey    []byte
	websocketURL string
	httpClient   *http.Client
}

// NewClient builds a call automation client from an ACS connection string
// of the form "endpoint=https://...;accesskey=...". websocketURL is the
// wss:// address calls stream their audio to.
func NewClient(connectionString, websocketURL string) (*Client, error) {
	endpoint, key, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	return &Client{
		endpoint:     endpoint,
		accessKey:    key,
		websocketURL: websocketURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func parseConnectionString(s string) (*url.URL, []byte, error) {
	var rawEndpoint, rawKey string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, nil, fmt.Errorf("malformed connection string segment %q", name)
		}
		switch strings.ToLower(name) {
		case "endpoint":
			rawEndpoint = value
		case "accesskey":
			rawKey = value
		}
	}
	if rawEndpoint == "" || rawKey == "" {
		return nil, nil, fmt.Errorf("connection string must contain endpoint and accesskey")
	}
	endpoint, err := url.Parse(rawEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid endpoint in connection string: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(rawKey)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid access key in connection string: %w", err)
	}
	return endpoint, key, nil
}

type mediaStreamingOptions struct {
	TransportURL        string `json:"transportUrl"`
	TransportType       string `json:"transportType"`
	ContentType         string `json:"contentType"`
	AudioChannelType    string `json:"audioChannelType"`
	StartMediaStreaming bool   `json:"startMediaStreaming"`
	EnableBidirectional bool   `json:"enableBidirectional"`
	AudioFormat         string `json:"audioFormat"`
}

type answerCallRequest struct {
	IncomingCallContext   string                `json:"incomingCallContext"`
	CallbackURI           string                `json:"callbackUri"`
	OperationContext      string                `json:"operationContext"`
	MediaStreamingOptions mediaStreamingOptions `json:"mediaStreamingOptions"`
}

// AnswerCall answers the call identified by incomingCallContext with
// bidirectional 24 kHz mono PCM streaming enabled from the start.
func (c *Client) AnswerCall(ctx context.Context, incomingCallContext, callbackURI string) (*AnswerResult, error) {
	body, err := sonic.Marshal(answerCallRequest{
		IncomingCallContext: incomingCallContext,
		CallbackURI:         callbackURI,
		OperationContext:    "incomingCall",
		MediaStreamingOptions: mediaStreamingOptions{
			TransportURL:        c.websocketURL,
			TransportType:       "websocket",
			ContentType:         "audio",
			AudioChannelType:    "mixed",
			StartMediaStreaming: true,
			EnableBidirectional: true,
			AudioFormat:         "Pcm24KMono",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode answer request: %w", err)
	}

	u := *c.endpoint
	u.Path = "/calling/callConnections:answer"
	u.RawQuery = "api-version=" + apiVersion

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("answer call request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read answer call response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("answer call returned %d: %s", resp.StatusCode, respBody)
	}

	var result AnswerResult
	if err := sonic.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode answer call response: %w", err)
	}
	return &result, nil
}

// sign applies the communication-services HMAC-SHA256 request signature
func (c *Client) sign(req *http.Request, body []byte) {
	contentHash := sha256.Sum256(body)
	encodedHash := base64.StdEncoding.EncodeToString(contentHash[:])
	date := time.Now().UTC().Format(http.TimeFormat)

	pathAndQuery := req.URL.EscapedPath()
	if req.URL.RawQuery != "" {
		pathAndQuery += "?" + req.URL.RawQuery
	}
	stringToSign := strings.Join([]string{
		req.Method,
		pathAndQuery,
		date + ";" + req.URL.Host + ";" + encodedHash,
	}, "\n")

	mac := hmac.New(sha256.New, c.accessKey)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-content-sha256", encodedHash)
	req.Header.Set("Authorization",
		"HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="+signature)
}
