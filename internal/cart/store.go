package cart

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/angelmondragon/marketplace-checkout/internal/menu"
	"github.com/angelmondragon/marketplace-checkout/internal/persistence"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
	"github.com/google/uuid"
)

const snapshotKind = "cart"

type mutationRecorder interface {
	IncMutation(op string)
}

// AddResult reports the line an add landed on and whether the previous
// restaurant's cart was discarded to make room for it.
type AddResult struct {
	Key                string   `json:"key"`
	RestaurantReplaced bool     `json:"restaurant_replaced"`
	Snapshot           Snapshot `json:"cart"`
}

// Store is the session's cart. Every mutation is persisted before it becomes
// visible and is then published to subscribers.
type Store struct {
	mu      sync.Mutex
	key     string
	persist persistence.Store
	logg    *logger.Logger
	metrics mutationRecorder

	cart    Cart
	version uint64

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSub     int

	// pubMu serializes delivery so subscribers never see versions go backwards.
	pubMu     sync.Mutex
	published uint64
}

// Option customizes a Store.
type Option func(*Store)

// WithMetrics counts mutations on the given recorder.
func WithMetrics(m mutationRecorder) Option {
	return func(s *Store) { s.metrics = m }
}

// Open loads the cart persisted for sessionKey. A malformed snapshot yields an empty cart.
func Open(ctx context.Context, sessionKey string, persist persistence.Store, logg *logger.Logger, opts ...Option) (*Store, error) {
	if strings.TrimSpace(sessionKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session key is required")
	}
	if persist == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart persistence required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Store{
		key:         persistence.Key(snapshotKind, sessionKey),
		persist:     persist,
		logg:        logg,
		subscribers: map[int]func(Snapshot){},
	}
	for _, opt := range opts {
		opt(s)
	}

	var stored Cart
	found, err := persistence.LoadJSON(ctx, persist, s.key, &stored)
	switch {
	case errors.Is(err, persistence.ErrMalformed):
		logg.Warn(logg.WithFields(ctx, map[string]any{"key": s.key, "error": err.Error()}), "cart.snapshot_malformed")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	case found:
		s.cart = sanitize(stored)
	}
	return s, nil
}

// sanitize drops lines that could not have been produced by the store.
func sanitize(c Cart) Cart {
	items := make([]Item, 0, len(c.Items))
	for _, item := range c.Items {
		if item.MenuItemID == uuid.Nil || item.Quantity < 1 {
			continue
		}
		if len(item.SelectedVariantOptionIDs) == 0 {
			for _, opt := range item.SelectedVariantOptions {
				item.SelectedVariantOptionIDs = append(item.SelectedVariantOptionIDs, opt.ID)
			}
		}
		item.Key = LineKey(item.MenuItemID, item.SelectedVariantOptionIDs)
		items = append(items, item)
	}
	c.Items = items
	if len(items) == 0 {
		return Cart{}
	}
	return c
}

// Snapshot returns a detached copy of the current cart.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Cart: s.cart.clone(), Version: s.version}
}

// Version increases by one on every committed mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Subscribe registers fn to receive the snapshot after every mutation. A
// snapshot older than one already delivered is skipped. fn must not mutate
// the store.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

// AddItem adds quantity of item with the given options. An identical line has its
// quantity increased. An item from another restaurant empties the cart first.
func (s *Store) AddItem(ctx context.Context, restaurant menu.Restaurant, item menu.Item, options []menu.Option, quantity int) (AddResult, error) {
	if quantity < 1 {
		return AddResult{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}
	if restaurant.ID == uuid.Nil || item.ID == uuid.Nil {
		return AddResult{}, pkgerrors.New(pkgerrors.CodeValidation, "restaurant and menu item are required")
	}
	if item.RestaurantID != uuid.Nil && item.RestaurantID != restaurant.ID {
		return AddResult{}, pkgerrors.New(pkgerrors.CodeValidation, "menu item does not belong to restaurant")
	}

	ids, selected := toSelected(options)
	key := LineKey(item.ID, ids)
	var replaced bool

	snap, err := s.mutate(ctx, "add", func(c *Cart) error {
		if !c.IsEmpty() && c.RestaurantID != restaurant.ID {
			*c = Cart{}
			replaced = true
		}
		c.RestaurantID = restaurant.ID
		c.RestaurantName = restaurant.Name
		c.DeliveryFee = restaurant.DeliveryFee
		c.MinimumOrder = restaurant.MinimumOrder

		if idx := c.Find(key); idx >= 0 {
			c.Items[idx].Quantity += quantity
			return nil
		}
		c.Items = append(c.Items, Item{
			Key:                      key,
			MenuItemID:               item.ID,
			Name:                     item.Name,
			BasePrice:                item.Price,
			Quantity:                 quantity,
			SelectedVariantOptionIDs: ids,
			SelectedVariantOptions:   selected,
		})
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	if replaced {
		s.logg.Info(s.logg.WithRestaurantID(ctx, restaurant.ID.String()), "cart.restaurant_replaced")
	}
	return AddResult{Key: key, RestaurantReplaced: replaced, Snapshot: snap}, nil
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (s *Store) UpdateQuantity(ctx context.Context, key string, quantity int) (Snapshot, error) {
	op := "update_quantity"
	if quantity <= 0 {
		op = "remove"
	}
	return s.mutate(ctx, op, func(c *Cart) error {
		idx := c.Find(key)
		if idx < 0 {
			return lineNotFound(key)
		}
		if quantity <= 0 {
			c.removeAt(idx)
			return nil
		}
		c.Items[idx].Quantity = quantity
		return nil
	})
}

// UpdateItemVariants replaces a line's option selection, keeping its quantity.
// If the new selection matches another line the two are merged.
func (s *Store) UpdateItemVariants(ctx context.Context, key string, options []menu.Option) (string, Snapshot, error) {
	var newKey string
	snap, err := s.mutate(ctx, "update_variants", func(c *Cart) error {
		idx := c.Find(key)
		if idx < 0 {
			return lineNotFound(key)
		}
		ids, selected := toSelected(options)
		line := c.Items[idx]
		newKey = LineKey(line.MenuItemID, ids)

		if other := c.Find(newKey); other >= 0 && other != idx {
			c.Items[other].Quantity += line.Quantity
			if c.Items[other].SpecialInstructions == "" {
				c.Items[other].SpecialInstructions = line.SpecialInstructions
			}
			c.removeAt(idx)
			return nil
		}

		line.Key = newKey
		line.SelectedVariantOptionIDs = ids
		line.SelectedVariantOptions = selected
		c.Items[idx] = line
		return nil
	})
	if err != nil {
		return "", Snapshot{}, err
	}
	return newKey, snap, nil
}

// UpdateItemNotes stores trimmed free text on a line; blank clears it.
func (s *Store) UpdateItemNotes(ctx context.Context, key, text string) (Snapshot, error) {
	return s.mutate(ctx, "update_notes", func(c *Cart) error {
		idx := c.Find(key)
		if idx < 0 {
			return lineNotFound(key)
		}
		c.Items[idx].SpecialInstructions = strings.TrimSpace(text)
		return nil
	})
}

// RemoveItem drops one line.
func (s *Store) RemoveItem(ctx context.Context, key string) (Snapshot, error) {
	return s.mutate(ctx, "remove", func(c *Cart) error {
		idx := c.Find(key)
		if idx < 0 {
			return lineNotFound(key)
		}
		c.removeAt(idx)
		return nil
	})
}

// Clear empties the cart and removes its persisted snapshot.
func (s *Store) Clear(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if err := s.persist.Clear(ctx, s.key); err != nil {
		s.mu.Unlock()
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	s.cart = Cart{}
	s.version++
	snap := Snapshot{Cart: s.cart.clone(), Version: s.version}
	s.mu.Unlock()

	s.record("clear")
	s.publish(snap)
	return snap, nil
}

// RemoveOrdered takes the lines of an ordered snapshot out of the cart. If the
// cart is unchanged since the snapshot it is cleared. Otherwise only the ordered
// quantities are subtracted, so lines added while the order was in flight stay.
func (s *Store) RemoveOrdered(ctx context.Context, ordered Snapshot) (Snapshot, error) {
	return s.mutate(ctx, "remove_ordered", func(c *Cart) error {
		if s.version == ordered.Version {
			*c = Cart{}
			return nil
		}
		if c.RestaurantID != ordered.RestaurantID {
			return nil
		}
		for _, line := range ordered.Items {
			idx := c.Find(line.Key)
			if idx < 0 {
				continue
			}
			if c.Items[idx].Quantity <= line.Quantity {
				c.removeAt(idx)
				continue
			}
			c.Items[idx].Quantity -= line.Quantity
		}
		return nil
	})
}

// mutate applies fn to a copy of the cart under s.mu, so fn may read s.version.
func (s *Store) mutate(ctx context.Context, op string, fn func(*Cart) error) (Snapshot, error) {
	s.mu.Lock()
	next := s.cart.clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	if next.IsEmpty() {
		next = Cart{}
	}
	if err := s.save(ctx, next); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	s.cart = next
	s.version++
	snap := Snapshot{Cart: s.cart.clone(), Version: s.version}
	s.mu.Unlock()

	s.record(op)
	s.publish(snap)
	return snap, nil
}

func (s *Store) save(ctx context.Context, c Cart) error {
	var err error
	if c.IsEmpty() {
		err = s.persist.Clear(ctx, s.key)
	} else {
		err = persistence.SaveJSON(ctx, s.persist, s.key, c)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return nil
}

func (s *Store) record(op string) {
	if s.metrics != nil {
		s.metrics.IncMutation(op)
	}
}

func (s *Store) publish(snap Snapshot) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if snap.Version <= s.published {
		return
	}
	s.published = snap.Version

	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Cart) removeAt(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}

func lineNotFound(key string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").
		WithDetails(map[string]any{"key": key})
}
