package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType     = "x-event-type"
	HeaderEventVersion  = "x-event-version"
	HeaderError         = "x-error"
	HeaderAttempts      = "x-attempts"
	HeaderOriginalTopic = "x-original-topic"
)

func DecodeEnvelope(b []byte) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType == "" {
		return env, fmt.Errorf("decode envelope: missing event_type")
	}
	return env, nil
}

func headerMap(hs []kafka.Header) map[string]string {
	out := make(map[string]string, len(hs))
	for _, h := range hs {
		out[h.Key] = string(h.Value)
	}
	return out
}
