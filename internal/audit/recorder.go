package audit

import (
	"context"
	"sync"
	"time"

	"cardms/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Domain actions recorded against the audit trail.
const (
	ActionTransfer = "TRANSFER"
	ActionCreate   = "CREATE"
	ActionBlock    = "BLOCK"
	ActionActivate = "ACTIVATE"
	ActionDelete   = "DELETE"
	ActionExpire   = "EXPIRE"
	ActionRegister = "REGISTER"
	ActionLogin    = "LOGIN"
)

type Event struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Details    string
	IPAddress  string
}

type Store interface {
	Insert(ctx context.Context, entry models.AuditLog) error
}

// Publisher is an optional downstream for audit events (Kafka in
// production). Publish failures are logged and swallowed like every other
// failure on this path.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Recorder is the fire-and-forget audit sink. Events go through a bounded
// queue to a single background worker; when the queue is full the event is
// dropped with a warning. Nothing on this path can block or roll back the
// operation that emitted the event.
type Recorder struct {
	store     Store
	publisher Publisher
	log       *logrus.Logger

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

func NewRecorder(store Store, publisher Publisher, log *logrus.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		store:     store,
		publisher: publisher,
		log:       log,
		events:    make(chan Event, queueSize),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues an event without blocking.
func (r *Recorder) Record(event Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.events <- event:
	default:
		r.log.WithFields(logrus.Fields{
			"action":    event.Action,
			"entity_id": event.EntityID,
		}).Warn("audit queue full, event dropped")
	}
}

// Close stops intake and waits for queued events to drain.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	r.mu.Unlock()
	close(r.events)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.events {
		r.deliver(event)
	}
}

func (r *Recorder) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := models.AuditLog{
		ID:         uuid.NewString(),
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Details:    event.Details,
	}
	if event.ActorID != "" {
		actor := event.ActorID
		entry.ActorID = &actor
	}
	if event.IPAddress != "" {
		ip := event.IPAddress
		entry.IPAddress = &ip
	}
	if err := r.store.Insert(ctx, entry); err != nil {
		r.log.WithError(err).WithField("action", event.Action).Error("failed to persist audit event")
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, entry); err != nil {
			r.log.WithError(err).WithField("action", event.Action).Error("failed to publish audit event")
		}
	}
}
