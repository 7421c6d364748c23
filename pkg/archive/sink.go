// Package archive keeps a record of every submission that reached a terminal
// state. Sinks are best effort: callers log failures and carry on.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/riskscope/riskscope/pkg/types"
)

// Sink receives terminal outcomes
type Sink interface {
	Record(ctx context.Context, rec *types.OutcomeRecord) error
}

// DocumentStore is the part of Client the Firestore sink needs
type DocumentStore interface {
	StoreDocument(ctx context.Context, collection, docID string, data interface{}) error
}

// Publisher is the part of Client the Pub/Sub sink needs
type Publisher interface {
	PublishMessage(ctx context.Context, topicName string, data []byte, attributes map[string]string) error
}

// Nop discards everything
type Nop struct{}

// Record does nothing
func (Nop) Record(context.Context, *types.OutcomeRecord) error { return nil }

// Multi fans a record out to several sinks and joins their errors
type Multi []Sink

// Record writes to every sink even if one fails
func (m Multi) Record(ctx context.Context, rec *types.OutcomeRecord) error {
	var result *multierror.Error
	for _, s := range m {
		if err := s.Record(ctx, rec); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// FirestoreSink stores one document per outcome, keyed by ticket id
type FirestoreSink struct {
	Store      DocumentStore
	Collection string
}

// Record stores rec
func (s *FirestoreSink) Record(ctx context.Context, rec *types.OutcomeRecord) error {
	if err := s.Store.StoreDocument(ctx, s.Collection, rec.TicketID, Document(rec)); err != nil {
		return fmt.Errorf("archive %s: %w", rec.TicketID, err)
	}
	return nil
}

// PubSubSink publishes one event per outcome
type PubSubSink struct {
	Publisher Publisher
	Topic     string
}

// Record publishes rec as JSON with routing attributes. An oversized payload
// is left out of the message body.
func (s *PubSubSink) Record(ctx context.Context, rec *types.OutcomeRecord) error {
	body := rec
	if oversized(rec) {
		trimmed := *rec
		trimmed.Payload = nil
		body = &trimmed
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode outcome %s: %w", rec.TicketID, err)
	}
	if err := s.Publisher.PublishMessage(ctx, s.Topic, data, Attributes(rec)); err != nil {
		return fmt.Errorf("publish %s: %w", rec.TicketID, err)
	}
	return nil
}

// Document is the Firestore representation of an outcome. The payload is kept
// as a JSON string; result shapes vary too much for native fields. Payloads
// over MaxPayloadBytes are replaced by payload_truncated.
func Document(rec *types.OutcomeRecord) map[string]interface{} {
	doc := map[string]interface{}{
		"ticket_id":    rec.TicketID,
		"kind":         string(rec.Kind),
		"manual":       rec.Manual,
		"category":     string(rec.Category),
		"status":       status(rec),
		"submitted_at": rec.SubmittedAt,
		"finished_at":  rec.FinishedAt,
		"duration_ms":  rec.FinishedAt.Sub(rec.SubmittedAt).Milliseconds(),
	}
	if rec.TaskID != "" {
		doc["task_id"] = string(rec.TaskID)
	}
	if rec.ErrorCode != "" {
		doc["error_code"] = rec.ErrorCode
	}
	switch {
	case oversized(rec):
		doc["payload_truncated"] = true
		doc["payload_bytes"] = len(rec.Payload)
	case len(rec.Payload) > 0:
		doc["payload"] = string(rec.Payload)
	}
	return doc
}

// Attributes are the Pub/Sub message attributes of an outcome
func Attributes(rec *types.OutcomeRecord) map[string]string {
	attrs := map[string]string{
		"kind":     string(rec.Kind),
		"category": string(rec.Category),
		"status":   status(rec),
		"finished": rec.FinishedAt.UTC().Format(time.RFC3339),
	}
	if rec.ErrorCode != "" {
		attrs["error_code"] = rec.ErrorCode
	}
	if oversized(rec) {
		attrs["payload_truncated"] = "true"
	}
	return attrs
}

func status(rec *types.OutcomeRecord) string {
	if rec.ErrorCode != "" {
		return "failed"
	}
	return "completed"
}
