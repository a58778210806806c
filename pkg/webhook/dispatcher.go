package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	shared "github.com/fitglue/polar-ingest/pkg"
)

const (
	HeaderEvent     = "Polar-Webhook-Event"
	HeaderSignature = "Polar-Webhook-Signature"
)

type EventType string

const (
	EventPing     EventType = "PING"
	EventExercise EventType = "EXERCISE"
)

var (
	ErrMethodNotAllowed   = errors.New("method not allowed")
	ErrMissingEventType   = errors.New("missing event type")
	ErrMissingSignature   = errors.New("missing signature")
	ErrVerificationFailed = errors.New("verification failed")
	ErrUnsupportedEvent   = errors.New("event not supported")
	ErrPublishFailed      = errors.New("failed to publish event")
)

// Event is one inbound webhook delivery.
type Event struct {
	Method    string
	Type      EventType
	Signature string
	Body      []byte
}

// EventFromRequest reads the headers and the raw body of r.
func EventFromRequest(r *http.Request) (Event, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return Event{}, fmt.Errorf("read body: %w", err)
	}
	return Event{
		Method:    r.Method,
		Type:      EventType(strings.TrimSpace(r.Header.Get(HeaderEvent))),
		Signature: strings.TrimSpace(r.Header.Get(HeaderSignature)),
		Body:      body,
	}, nil
}

// Result is the HTTP answer to a webhook delivery. Err is nil only on success.
type Result struct {
	StatusCode int
	Message    string
	Err        error
	MessageID  string
}

func ok(messageID string) Result {
	return Result{StatusCode: http.StatusOK, Message: "Success", MessageID: messageID}
}

func reject(code int, message string, err error) Result {
	return Result{StatusCode: code, Message: message, Err: err}
}

// Dispatcher verifies webhook deliveries and forwards exercise events to the bus.
type Dispatcher struct {
	Publisher shared.Publisher
	Topic     string
	Secret    []byte
	Logger    *slog.Logger
}

// Dispatch classifies ev and returns the response to send. It never returns
// an error past the request; failures are encoded in the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Result {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if ev.Method != http.MethodPost {
		return reject(http.StatusBadRequest, "Bad request", ErrMethodNotAllowed)
	}

	logger.Info("Received event type", "event_type", string(ev.Type))
	switch ev.Type {
	case "":
		return reject(http.StatusBadRequest, "Missing event type", ErrMissingEventType)
	case EventPing:
		return ok("")
	case EventExercise:
		return d.dispatchExercise(ctx, logger, ev)
	default:
		logger.Info("Received unsupported event type", "event_type", string(ev.Type))
		return reject(http.StatusBadRequest, "Event not supported", ErrUnsupportedEvent)
	}
}

func (d *Dispatcher) dispatchExercise(ctx context.Context, logger *slog.Logger, ev Event) Result {
	if ev.Signature == "" {
		return reject(http.StatusBadRequest, "Missing signature", ErrMissingSignature)
	}
	if !VerifySignature(ev.Body, d.Secret, ev.Signature) {
		logger.Warn("Webhook signature verification failed")
		return reject(http.StatusBadRequest, "Verification failed", ErrVerificationFailed)
	}

	payload, err := reencode(ev.Body)
	if err != nil {
		logger.Error("Error publishing to Pub/Sub", "error", err)
		return reject(http.StatusInternalServerError, "Failed to publish event", fmt.Errorf("%w: %w", ErrPublishFailed, err))
	}

	msgID, err := d.Publisher.Publish(ctx, d.Topic, payload)
	if err != nil {
		logger.Error("Error publishing to Pub/Sub", "topic", d.Topic, "error", err)
		return reject(http.StatusInternalServerError, "Failed to publish event", fmt.Errorf("%w: %w", ErrPublishFailed, err))
	}

	logger.Info("Event data successfully published to Pub/Sub", "topic", d.Topic, "message_id", msgID)
	return ok(msgID)
}

// reencode parses the body as JSON and serializes it again in compact form.
// Numbers keep their literal text and &, < and > are not escaped.
func reencode(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode payload: trailing data after JSON value")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
