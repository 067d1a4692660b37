// Package notify relays build outcomes to a live consumer over NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/events"
	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
	"git.home.luguber.info/inful/corpusbuild/internal/retry"
)

// Publisher sends one message on a subject.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Payload is the JSON document published for every finished cycle.
type Payload struct {
	CycleID    string         `json:"cycle_id"`
	Status     string         `json:"status"`
	Full       bool           `json:"full"`
	Touched    []string       `json:"touched,omitempty"`
	Removed    []string       `json:"removed,omitempty"`
	Records    []*diag.Record `json:"records,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	At         time.Time      `json:"at"`
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// NewPayload converts an outcome event into its wire form.
func NewPayload(evt events.Outcome) (Payload, bool) {
	switch e := evt.(type) {
	case events.BuildCompleted:
		p := Payload{
			CycleID:    e.CycleID,
			Status:     StatusCompleted,
			Full:       e.Full,
			Touched:    e.Touched,
			Removed:    e.Removed,
			DurationMS: e.Duration.Milliseconds(),
			At:         e.FinishedAt,
		}
		if e.Records != nil {
			p.Records = e.Records.Records()
		}
		return p, true
	case events.BuildFailed:
		p := Payload{CycleID: e.CycleID, Status: StatusFailed, Full: e.Full, At: e.FailedAt}
		if e.Err != nil {
			p.Error = e.Err.Error()
		}
		return p, true
	}
	return Payload{}, false
}

// Relay forwards BuildCompleted and BuildFailed events to a publisher.
type Relay struct {
	bus     *events.Bus
	pub     Publisher
	subject string
	log     *slog.Logger
	policy  retry.Policy
	ready   chan struct{}
}

// NewRelay creates a relay publishing on subject.
func NewRelay(bus *events.Bus, pub Publisher, subject string, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{bus: bus, pub: pub, subject: subject, log: log, policy: retry.DefaultPolicy(), ready: make(chan struct{})}
}

// WithRetry replaces the publish retry policy. Call it before Run.
func (r *Relay) WithRetry(p retry.Policy) *Relay {
	r.policy = p
	return r
}

// Ready is closed once the relay is subscribed.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Run relays outcomes until ctx is canceled. Failed publishes are retried
// per the relay policy, then logged; they never stop the relay.
func (r *Relay) Run(ctx context.Context) error {
	outcomes, unsubscribe := events.Subscribe[events.Outcome](r.bus, 16)
	defer unsubscribe()
	close(r.ready)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-outcomes:
			if !ok {
				return nil
			}
			if err := r.forward(ctx, evt); err != nil {
				r.log.WarnContext(ctx, "Failed to relay build outcome",
					logfields.CycleID(evt.Cycle()), logfields.Error(err))
			}
		}
	}
}

func (r *Relay) forward(ctx context.Context, evt events.Outcome) error {
	payload, ok := NewPayload(evt)
	if !ok {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return r.policy.Do(ctx, func() error { return r.pub.Publish(r.subject, data) })
}

// NATSPublisher publishes on a core NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// Connect dials the NATS server at url.
func Connect(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("corpusbuild"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNotify, "failed to connect to NATS").
			WithContext("url", url).Build()
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(subject string, data []byte) error {
	return p.conn.Publish(subject, data)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.FlushTimeout(2 * time.Second)
	p.conn.Close()
	return err
}
