package connpubsub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/pubsub/v2"
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/api/option"

	"github.com/PeerDB-io/gcp-inventory/logger"
)

// RunEvent is published once per successful run.
type RunEvent struct {
	Kind           string     `json:"kind"`
	Destination    string     `json:"destination"`
	DateExtraction civil.Date `json:"date_extraction"`
	LogTime        time.Time  `json:"log_time"`
	Rows           int        `json:"rows"`
	Rejected       int        `json:"rejected"`
	RunID          string     `json:"run_id"`
	Environment    string     `json:"environment,omitempty"`
	DryRun         bool       `json:"dry_run,omitempty"`
}

type Notifier struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
}

// NewNotifier publishes to topic, either a full projects/<p>/topics/<t> name
// or a topic id in defaultProject.
func NewNotifier(ctx context.Context, defaultProject string, topic string, opts ...option.ClientOption) (*Notifier, error) {
	project := defaultProject
	if rest, ok := strings.CutPrefix(topic, "projects/"); ok {
		parts := strings.Split(rest, "/")
		if len(parts) != 3 || parts[1] != "topics" {
			return nil, fmt.Errorf("invalid topic name %s", topic)
		}
		project = parts[0]
	}

	client, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &Notifier{
		client:    client,
		publisher: client.Publisher(topic),
		topic:     topic,
	}, nil
}

func newMessage(event RunEvent) (*pubsub.Message, error) {
	data, err := jsoniter.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run event: %w", err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":   event.Kind,
			"run_id": event.RunID,
		},
	}, nil
}

// Notify publishes event and waits for the server to acknowledge it.
func (n *Notifier) Notify(ctx context.Context, event RunEvent) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}

	id, err := n.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("[pubsub] error publishing message to %s: %w", n.topic, err)
	}
	logger.LoggerFromCtx(ctx).Info("published run event", "topic", n.topic, "message_id", id)
	return nil
}

func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	n.publisher.Stop()
	return n.client.Close()
}
