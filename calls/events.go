package calls

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const (
	eventTypeIncomingCall           = "Microsoft.Communication.IncomingCall"
	eventTypeSubscriptionValidation = "Microsoft.EventGrid.SubscriptionValidationEvent"

	callbackCallConnected          = "Microsoft.Communication.CallConnected"
	callbackCallDisconnected       = "Microsoft.Communication.CallDisconnected"
	callbackMediaStreamingStarted  = "Microsoft.Communication.MediaStreamingStarted"
	callbackMediaStreamingStopped  = "Microsoft.Communication.MediaStreamingStopped"
	callbackMediaStreamingFailed   = "Microsoft.Communication.MediaStreamingFailed"
	callbackParticipantsUpdated    = "Microsoft.Communication.ParticipantsUpdated"
)

// ValidationResponse is echoed back to Event Grid during webhook handshake
type ValidationResponse struct {
	ValidationResponse string `json:"validationResponse"`
}

type gridEvent struct {
	EventType string            `json:"eventType"`
	Data      incomingEventData `json:"data"`
}

type incomingEventData struct {
	From                participantInfo `json:"from"`
	IncomingCallContext string          `json:"incomingCallContext"`
	ValidationCode      string          `json:"validationCode"`
}

type participantInfo struct {
	Kind        string `json:"kind"`
	RawID       string `json:"rawId"`
	PhoneNumber struct {
		Value string `json:"value"`
	} `json:"phoneNumber"`
}

type callbackEvent struct {
	Type string            `json:"type"`
	Data callbackEventData `json:"data"`
}

type callbackEventData struct {
	CallConnectionID     string `json:"callConnectionId"`
	CorrelationID        string `json:"correlationId"`
	MediaStreamingUpdate struct {
		ContentType                 string `json:"contentType"`
		MediaStreamingStatus        string `json:"mediaStreamingStatus"`
		MediaStreamingStatusDetails string `json:"mediaStreamingStatusDetails"`
	} `json:"mediaStreamingUpdate"`
	ResultInformation struct {
		Code    int    `json:"code"`
		SubCode int    `json:"subCode"`
		Message string `json:"message"`
	} `json:"resultInformation"`
}

// Processor handles Event Grid webhooks for the telephony front door
type Processor struct {
	answerer Answerer
	baseURL  string // public hostname, no scheme
}

// NewProcessor builds a processor that answers incoming calls through
// answerer and points callbacks and media at baseURL.
func NewProcessor(answerer Answerer, baseURL string) *Processor {
	return &Processor{answerer: answerer, baseURL: baseURL}
}

// ProcessIncomingEvents handles an Event Grid webhook delivery: it answers
// every incoming-call event and returns a non-nil validation response when
// the delivery is a subscription handshake.
func (p *Processor) ProcessIncomingEvents(ctx context.Context, body []byte) (*ValidationResponse, error) {
	var events []gridEvent
	if err := sonic.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("failed to decode event grid payload: %w", err)
	}

	callbackBase := fmt.Sprintf("https://%s/v1/calls/callbacks", p.baseURL)

	for _, event := range events {
		log.Printf("📞 Processing event: %s", event.EventType)

		switch event.EventType {
		case eventTypeSubscriptionValidation:
			log.Println("📞 Event subscription validation event received")
			return &ValidationResponse{ValidationResponse: event.Data.ValidationCode}, nil

		case eventTypeIncomingCall:
			callerID := event.Data.From.RawID
			if event.Data.From.Kind == "phoneNumber" {
				callerID = event.Data.From.PhoneNumber.Value
			}
			contextID := uuid.New().String()
			callbackURI := fmt.Sprintf("%s/%s?%s", callbackBase, contextID,
				url.Values{"callerId": {callerID}}.Encode())

			result, err := p.answerer.AnswerCall(ctx, event.Data.IncomingCallContext, callbackURI)
			if err != nil {
				return nil, fmt.Errorf("failed to answer call: %w", err)
			}
			log.Printf("✅ Answered call with connection ID %q and correlation ID %q",
				result.CallConnectionID, result.CorrelationID)

		default:
			log.Printf("⚠️ Ignoring event type: %s", event.EventType)
		}
	}
	return nil, nil
}

// ProcessCallbackEvents handles mid-call events delivered to the callback
// URI registered at answer time. Events only get logged; the caller must
// acknowledge the delivery regardless.
func (p *Processor) ProcessCallbackEvents(contextID string, body []byte) error {
	var events []callbackEvent
	if err := sonic.Unmarshal(body, &events); err != nil {
		return fmt.Errorf("failed to decode callback payload: %w", err)
	}

	for _, event := range events {
		log.Printf("📞 Callback event. Context ID: %s, Type: %s, Correlation ID: %s, Call Connection ID: %s",
			contextID, event.Type, event.Data.CorrelationID, event.Data.CallConnectionID)

		switch event.Type {
		case callbackCallConnected:
			log.Printf("✅ Call connected for context %s", contextID)

		case callbackMediaStreamingStarted, callbackMediaStreamingStopped:
			u := event.Data.MediaStreamingUpdate
			log.Printf("🔊 Media streaming update for context %s: content=%s status=%s details=%s",
				contextID, u.ContentType, u.MediaStreamingStatus, u.MediaStreamingStatusDetails)

		case callbackMediaStreamingFailed:
			ri := event.Data.ResultInformation
			log.Printf("❌ Media streaming failed for context %s: code=%d subcode=%d message=%s",
				contextID, ri.Code, ri.SubCode, ri.Message)

		case callbackCallDisconnected:
			log.Printf("📴 Call disconnected for context %s", contextID)

		case callbackParticipantsUpdated:
			// routine roster churn, nothing to do

		default:
			log.Printf("⚠️ Unhandled callback event type %s for context %s", event.Type, contextID)
		}
	}
	return nil
}
