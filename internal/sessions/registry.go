package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/marketplace-checkout/internal/address"
	"github.com/angelmondragon/marketplace-checkout/internal/cart"
	"github.com/angelmondragon/marketplace-checkout/internal/checkout"
	"github.com/angelmondragon/marketplace-checkout/internal/persistence"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
	"github.com/angelmondragon/marketplace-checkout/pkg/metrics"
)

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultPruneInterval = time.Minute
)

// Workspace is the live state of one client session.
type Workspace struct {
	SessionID string
	Cart      *cart.Store
	Composer  *checkout.Composer

	lastSeen    atomic.Int64
	unsubscribe func()
}

func (w *Workspace) touch(at time.Time) {
	w.lastSeen.Store(at.UnixNano())
}

// LastSeen is the last time the session was used or its cart changed.
func (w *Workspace) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load())
}

// Params configure the registry.
type Params struct {
	Logger      *logger.Logger
	Persistence persistence.Store
	Gateway     checkout.Gateway
	Addresses   *address.Book
	Contacts    *checkout.Contacts
	Checkout    checkout.Config
	Metrics     *metrics.CheckoutMetrics
	IdleTTL     time.Duration
}

// expiredPurger is implemented by stores that keep expired rows until swept.
type expiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Registry maps session ids to workspaces and drops the idle ones. Carts
// outlive their workspace through the persistence store.
type Registry struct {
	params Params
	logg   *logger.Logger
	now    func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewRegistry(params Params) (*Registry, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Persistence == nil {
		return nil, fmt.Errorf("persistence required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("marketplace gateway required")
	}
	if params.Addresses == nil {
		params.Addresses = address.NewBook(params.Persistence, params.Logger)
	}
	if params.Contacts == nil {
		params.Contacts = checkout.NewContacts(params.Persistence, params.Logger)
	}
	if params.IdleTTL <= 0 {
		params.IdleTTL = defaultIdleTTL
	}
	return &Registry{
		params:     params,
		logg:       params.Logger,
		now:        time.Now,
		workspaces: map[string]*Workspace{},
	}, nil
}

// Get returns the session's workspace, opening it from persistence on first use.
// The load runs outside the registry lock; if two requests open the same session
// concurrently the first one stored wins.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Workspace, error) {
	sessionID = strings.TrimSpace(sessionID)
	if ws := r.lookup(sessionID); ws != nil {
		return ws, nil
	}

	opened, err := r.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.workspaces[sessionID]; ok {
		opened.unsubscribe()
		ws.touch(r.now())
		return ws, nil
	}
	r.workspaces[sessionID] = opened
	return opened, nil
}

func (r *Registry) lookup(sessionID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[sessionID]
	if !ok {
		return nil
	}
	ws.touch(r.now())
	return ws
}

func (r *Registry) open(ctx context.Context, sessionID string) (*Workspace, error) {
	store, err := cart.Open(ctx, sessionID, r.params.Persistence, r.logg, cart.WithMetrics(r.params.Metrics))
	if err != nil {
		return nil, err
	}
	composer, err := checkout.NewComposer(checkout.Deps{
		SessionID: sessionID,
		Cart:      store,
		Gateway:   r.params.Gateway,
		Addresses: r.params.Addresses,
		Contacts:  r.params.Contacts,
		Config:    r.params.Checkout,
		Logger:    r.logg,
		Metrics:   r.params.Metrics,
	})
	if err != nil {
		return nil, err
	}

	ws := &Workspace{SessionID: sessionID, Cart: store, Composer: composer}
	ws.touch(r.now())
	ws.unsubscribe = store.Subscribe(func(cart.Snapshot) { ws.touch(r.now()) })
	r.logg.Debug(r.logg.WithSessionID(ctx, sessionID), "session.opened")
	return ws, nil
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Prune drops workspaces idle for longer than the TTL. A workspace with a
// submission in flight is kept.
func (r *Registry) Prune() int {
	cutoff := r.now().Add(-r.params.IdleTTL)
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, ws := range r.workspaces {
		if ws.Composer.Loading() || ws.LastSeen().After(cutoff) {
			continue
		}
		if ws.unsubscribe != nil {
			ws.unsubscribe()
		}
		delete(r.workspaces, id)
		removed++
	}
	return removed
}

// Run prunes on a fixed cadence until the context is canceled. Stores that keep
// expired snapshots around are swept on the same tick.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "session pruner stopped")
			return ctx.Err()
		case <-ticker.C:
			if removed := r.Prune(); removed > 0 {
				r.logg.Info(r.logg.WithField(ctx, "removed", removed), "sessions pruned")
			}
			r.purgeExpired(ctx)
		}
	}
}

func (r *Registry) purgeExpired(ctx context.Context) {
	purger, ok := r.params.Persistence.(expiredPurger)
	if !ok {
		return
	}
	removed, err := purger.PurgeExpired(ctx)
	if err != nil {
		r.logg.Error(ctx, "snapshot purge failed", err)
		return
	}
	if removed > 0 {
		r.logg.Info(r.logg.WithField(ctx, "removed", removed), "expired snapshots purged")
	}
}
