package custody

import (
	"context"
	"fmt"
	"sync"
	"time"

	"truthcert/internal/domain"
)

// Ledger is an in-memory chain-of-custody store. Each certificate owns an
// arena with its own lock, so appends to one certificate are serialized while
// different certificates proceed in parallel.
type Ledger struct {
	mu     sync.RWMutex
	arenas map[string]*arena
}

type arena struct {
	mu     sync.Mutex
	events []domain.CustodyEvent
}

func New() *Ledger {
	return &Ledger{arenas: make(map[string]*arena)}
}

// Append records one event. The event's timestamp must not be earlier than
// the last recorded event for the certificate.
func (l *Ledger) Append(ctx context.Context, certificateID string, event domain.CustodyEvent) (domain.CustodyEvent, error) {
	out, err := l.AppendAll(ctx, certificateID, []domain.CustodyEvent{event})
	if err != nil {
		return domain.CustodyEvent{}, err
	}
	return out[0], nil
}

// AppendAll validates the whole batch against the arena and appends every
// event or none of them.
func (l *Ledger) AppendAll(ctx context.Context, certificateID string, events []domain.CustodyEvent) ([]domain.CustodyEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if certificateID == "" {
		return nil, fmt.Errorf("%w: certificate id is required", domain.ErrValidation)
	}
	if len(events) == 0 {
		return nil, nil
	}

	a := l.ensureArena(certificateID)
	a.mu.Lock()
	defer a.mu.Unlock()

	var last time.Time
	var seq int64
	if n := len(a.events); n > 0 {
		last = a.events[n-1].Timestamp
		seq = a.events[n-1].Seq
	}
	prepared, err := PrepareBatch(events, last, seq)
	if err != nil {
		return nil, err
	}
	a.events = append(a.events, prepared...)
	return cloneEvents(prepared), nil
}

// History returns a copy of the certificate's events, oldest first. Unknown
// certificates have an empty history.
func (l *Ledger) History(ctx context.Context, certificateID string) ([]domain.CustodyEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	a := l.arenas[certificateID]
	l.mu.RUnlock()
	if a == nil {
		return []domain.CustodyEvent{}, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneEvents(a.events), nil
}

func (l *Ledger) ensureArena(certificateID string) *arena {
	l.mu.RLock()
	a := l.arenas[certificateID]
	l.mu.RUnlock()
	if a != nil {
		return a
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if a = l.arenas[certificateID]; a == nil {
		a = &arena{}
		l.arenas[certificateID] = a
	}
	return a
}

// PrepareBatch normalizes timestamps, checks ordering against the last
// recorded timestamp and assigns sequence numbers after lastSeq. It is shared
// by every ledger backend.
func PrepareBatch(events []domain.CustodyEvent, last time.Time, lastSeq int64) ([]domain.CustodyEvent, error) {
	out := make([]domain.CustodyEvent, 0, len(events))
	for _, ev := range events {
		if err := validateEvent(ev); err != nil {
			return nil, err
		}
		ev.Timestamp = domain.NormalizeTime(ev.Timestamp)
		if !last.IsZero() && ev.Timestamp.Before(last) {
			return nil, fmt.Errorf("%w: %s at %s precedes %s", domain.ErrOrdering, ev.Kind,
				ev.Timestamp.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
		}
		lastSeq++
		ev.Seq = lastSeq
		last = ev.Timestamp
		out = append(out, ev)
	}
	return out, nil
}

func validateEvent(ev domain.CustodyEvent) error {
	switch {
	case ev.Timestamp.IsZero():
		return fmt.Errorf("%w: custody event timestamp is required", domain.ErrValidation)
	case ev.Kind == "":
		return fmt.Errorf("%w: custody event kind is required", domain.ErrValidation)
	case ev.Actor == "":
		return fmt.Errorf("%w: custody event actor is required", domain.ErrValidation)
	case ev.EvidenceHash == "":
		return fmt.Errorf("%w: custody event evidence hash is required", domain.ErrValidation)
	}
	return nil
}

func cloneEvents(events []domain.CustodyEvent) []domain.CustodyEvent {
	out := make([]domain.CustodyEvent, len(events))
	copy(out, events)
	return out
}
