package eventsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const DefaultEmailJobTopic = "email.jobs"

var errWriterNotInitialised = errors.New("email job publisher: writer not initialised")

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EmailJobPublisher hands email jobs to the notification dispatcher topic,
// keyed by job id.
type EmailJobPublisher struct {
	writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if strings.TrimSpace(topic) == "" {
		topic = DefaultEmailJobTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewEmailJobPublisher(writer MessageWriter) *EmailJobPublisher {
	return &EmailJobPublisher{writer: writer}
}

func (p *EmailJobPublisher) PublishEmailJob(ctx context.Context, job ports.EmailJob) error {
	if p == nil || p.writer == nil {
		return errWriterNotInitialised
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("email job publisher: marshal job: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.JobID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "template", Value: []byte(job.Template)},
		},
	}); err != nil {
		return fmt.Errorf("email job publisher: write job %s: %w", job.JobID, err)
	}
	return nil
}

func (p *EmailJobPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// UUIDGenerator issues RFC 4122 v4 job identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.EmailJobPublisher = (*EmailJobPublisher)(nil)
var _ ports.IDGenerator = UUIDGenerator{}
