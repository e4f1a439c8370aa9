package notifications

import (
	"context"
	"sync"

	"github.com/italosonotos/RelatoRapido/internal/models"
	"github.com/italosonotos/RelatoRapido/internal/store"
)

// ProjectionState is the derived view a notification bell renders.
type ProjectionState struct {
	Notifications []models.Notification
	UnreadCount   int
	Loading       bool
}

// Projection is a reactive read model over Service.Subscribe. It holds
// exactly one active subscription at a time: starting again first tears
// down the previous stream, and snapshots arriving after teardown are
// dropped. Mutations are delegated to the service and reflected by the
// next pushed snapshot rather than patched locally.
type Projection struct {
	svc *Service

	mu         sync.Mutex
	state      ProjectionState
	stop       store.UnsubscribeFunc
	generation int
	userID     string
	onChange   func(ProjectionState)
}

// NewProjection creates an idle projection.
func NewProjection(svc *Service) *Projection {
	return &Projection{svc: svc, state: ProjectionState{Loading: true}}
}

// OnChange registers an observer invoked after every state change,
// in delivery order. Set it before Start.
func (p *Projection) OnChange(fn func(ProjectionState)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Start subscribes for the given recipient. An empty userID resolves
// immediately to an empty, non-loading state without touching the store.
func (p *Projection) Start(ctx context.Context, userID string) error {
	p.mu.Lock()
	p.teardownLocked()
	p.generation++
	generation := p.generation
	p.userID = userID

	if userID == "" {
		notify := p.setStateLocked(ProjectionState{})
		p.mu.Unlock()
		notify()
		return nil
	}

	p.state = ProjectionState{Loading: true}
	p.mu.Unlock()

	stop, err := p.svc.Subscribe(ctx, userID, func(list []models.Notification) {
		p.apply(generation, list)
	})
	if err != nil {
		p.mu.Lock()
		notify := func() {}
		if p.generation == generation {
			notify = p.setStateLocked(ProjectionState{})
		}
		p.mu.Unlock()
		notify()
		return err
	}

	p.mu.Lock()
	if p.generation != generation {
		// Stopped or restarted while subscribing.
		p.mu.Unlock()
		stop()
		return nil
	}
	p.stop = stop
	p.mu.Unlock()
	return nil
}

// apply installs a delivered snapshot, recomputing the unread count from
// scratch. Stale deliveries from a torn-down subscription are ignored.
func (p *Projection) apply(generation int, list []models.Notification) {
	p.mu.Lock()
	if p.generation != generation {
		p.mu.Unlock()
		return
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	notify := p.setStateLocked(ProjectionState{Notifications: list, UnreadCount: unread})
	p.mu.Unlock()
	notify()
}

// Stop tears down the subscription. Safe to call repeatedly.
func (p *Projection) Stop() {
	p.mu.Lock()
	p.teardownLocked()
	p.generation++
	p.mu.Unlock()
}

func (p *Projection) teardownLocked() {
	if p.stop != nil {
		stop := p.stop
		p.stop = nil
		// The unsubscribe handle is idempotent; calling under the lock is
		// safe because delivery guards re-check the generation.
		stop()
	}
}

// setStateLocked installs the state and returns the observer call to run
// once the lock is released.
func (p *Projection) setStateLocked(state ProjectionState) func() {
	p.state = state
	if p.onChange == nil {
		return func() {}
	}
	onChange := p.onChange
	return func() { onChange(state) }
}

// State returns the current derived view.
func (p *Projection) State() ProjectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// MarkAsRead delegates to the service; the local list is not patched, the
// next snapshot carries the change.
func (p *Projection) MarkAsRead(ctx context.Context, notificationID string) error {
	return p.svc.MarkAsRead(ctx, notificationID)
}

// MarkAllAsRead delegates to the service for the subscribed recipient.
// Without an authenticated user it is a no-op.
func (p *Projection) MarkAllAsRead(ctx context.Context) error {
	p.mu.Lock()
	userID := p.userID
	p.mu.Unlock()
	if userID == "" {
		return nil
	}
	return p.svc.MarkAllAsRead(ctx, userID)
}
