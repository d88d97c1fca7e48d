// Package notify announces completed gallery runs to external listeners.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/ductgallery/internal/pipeline"
)

// Summary is the JSON payload published for every run.
type Summary struct {
	RunID         string    `json:"run_id"`
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
	Total         int       `json:"total"`
	Fetched       []string  `json:"fetched"`
	FetchFailures []string  `json:"fetch_failures,omitempty"`
	BuildFailures []string  `json:"build_failures,omitempty"`
	DryRun        bool      `json:"dry_run,omitempty"`
	Document      string    `json:"document,omitempty"`
	Written       bool      `json:"written"`
}

// NewSummary builds the payload for o. document is the gallery path and
// written reports whether it changed during the run.
func NewSummary(o *pipeline.RunOutcome, document string, written bool) Summary {
	s := Summary{
		RunID:      o.RunID,
		Status:     string(o.Status()),
		StartedAt:  o.StartedAt.UTC(),
		DurationMS: o.Duration().Milliseconds(),
		Total:      o.Total,
		Fetched:    make([]string, 0, len(o.Fetched)),
		DryRun:     o.DryRun,
		Document:   document,
		Written:    written,
	}
	for _, r := range o.Fetched {
		s.Fetched = append(s.Fetched, r.Example.Title)
	}
	for _, f := range o.FetchErrs {
		s.FetchFailures = append(s.FetchFailures, f.Title)
	}
	for _, f := range o.BuildErrs {
		s.BuildFailures = append(s.BuildFailures, f.Title)
	}
	return s
}

// Notifier delivers run summaries.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
	Close() error
}

// Noop discards summaries.
type Noop struct{}

func (Noop) Notify(context.Context, Summary) error { return nil }
func (Noop) Close() error                          { return nil }

// publisher is the subset of NATS used to deliver a message.
type publisher interface {
	publish(ctx context.Context, subject string, data []byte) error
	close()
}

// NATSNotifier publishes summaries as JSON to a NATS subject.
type NATSNotifier struct {
	pub     publisher
	subject string
	logger  *slog.Logger
}

// NATSOptions configures NewNATSNotifier.
type NATSOptions struct {
	URL     string
	Subject string
	// JetStream requires a stream bound to Subject and waits for its ack.
	JetStream bool
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewNATSNotifier connects to the server at opts.URL.
func NewNATSNotifier(opts NATSOptions) (*NATSNotifier, error) {
	if opts.URL == "" {
		return nil, errors.New("nats url is required")
	}
	if opts.Subject == "" {
		return nil, errors.New("nats subject is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(opts.URL, nats.Name("ductgallery"), nats.Timeout(opts.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	var pub publisher = &corePublisher{conn: conn, timeout: opts.Timeout}
	if opts.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		pub = &jetStreamPublisher{conn: conn, js: js}
	}
	logger.Info("NATS notifier initialized", "url", opts.URL, "subject", opts.Subject, "jetstream", opts.JetStream)
	return &NATSNotifier{pub: pub, subject: opts.Subject, logger: logger}, nil
}

// Notify publishes s.
func (n *NATSNotifier) Notify(ctx context.Context, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := n.pub.publish(ctx, n.subject, data); err != nil {
		return fmt.Errorf("failed to publish run summary: %w", err)
	}
	n.logger.Debug("Published run summary", "subject", n.subject, "run_id", s.RunID)
	return nil
}

// Close drains and closes the connection.
func (n *NATSNotifier) Close() error {
	n.pub.close()
	return nil
}

type corePublisher struct {
	conn    *nats.Conn
	timeout time.Duration
}

func (p *corePublisher) publish(_ context.Context, subject string, data []byte) error {
	if err := p.conn.Publish(subject, data); err != nil {
		return err
	}
	return p.conn.FlushTimeout(p.timeout)
}

func (p *corePublisher) close() { _ = p.conn.Drain() }

type jetStreamPublisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

func (p *jetStreamPublisher) publish(ctx context.Context, subject string, data []byte) error {
	_, err := p.js.Publish(ctx, subject, data)
	return err
}

func (p *jetStreamPublisher) close() { _ = p.conn.Drain() }
