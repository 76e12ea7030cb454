package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

const (
	// StreamName is the JetStream stream holding published results.
	StreamName = "CHOICETRIAL_RESULTS"

	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
)

// ConnectNATS opens a NATS connection with JetStream.
func ConnectNATS(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	opts := []nats.Option{
		nats.Name("choicetrial"),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

// Publisher is the part of jetstream.JetStream the NATS sink needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher publishes each record to <prefix>.results.<session id>.
type NATSPublisher struct {
	js     Publisher
	prefix string
}

func NewNATSPublisher(js Publisher, prefix string) *NATSPublisher {
	return &NATSPublisher{js: js, prefix: prefix}
}

// EnsureStream creates or updates the results stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream, prefix string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Timed choice trial results",
		Subjects:    []string{prefix + ".results.>"},
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// Subject returns the subject a session's records are published to.
func (p *NATSPublisher) Subject(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s.results.%s", p.prefix, sessionID)
}

// Save publishes rec wrapped in an event envelope. The trial id is used as
// the message id so redelivered publishes are deduplicated.
func (p *NATSPublisher) Save(ctx context.Context, rec Record) error {
	envelope := map[string]interface{}{
		"eventId":   rec.Result.TrialID.String(),
		"eventType": "trial_completed",
		"sessionId": rec.SessionID.String(),
		"timestamp": rec.Result.EndedAt,
		"payload":   rec,
	}
	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	subject := p.Subject(rec.SessionID)
	ack, err := p.js.Publish(ctx, subject, messageBytes, jetstream.WithMsgID(rec.Result.TrialID.String()))
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Int("size", len(messageBytes)).
		Msg("published trial result")
	return nil
}
