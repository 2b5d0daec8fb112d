package sessions

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/marketplace-checkout/internal/marketplace"
	"github.com/angelmondragon/marketplace-checkout/internal/menu"
	"github.com/angelmondragon/marketplace-checkout/internal/persistence"
	"github.com/angelmondragon/marketplace-checkout/internal/pricing"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type nopGateway struct{}

func (nopGateway) GetPaymentMethods(context.Context, uuid.UUID) (*marketplace.PaymentMethods, error) {
	return nil, nil
}

func (nopGateway) GetLoyaltySettings(context.Context, uuid.UUID) (*pricing.LoyaltySettings, error) {
	return nil, nil
}

func (nopGateway) ListLoyaltyStatus(context.Context) ([]pricing.LoyaltyStatus, error) {
	return nil, nil
}

func (nopGateway) GetDeliverySlots(context.Context, uuid.UUID, string) ([]marketplace.DeliverySlot, error) {
	return nil, nil
}

func (nopGateway) CreateOrder(context.Context, marketplace.OrderRequest) (*marketplace.OrderConfirmation, error) {
	return &marketplace.OrderConfirmation{ID: "ord"}, nil
}

func (nopGateway) CreatePaymentSession(context.Context, marketplace.PaymentSessionRequest) (*marketplace.PaymentSession, error) {
	return &marketplace.PaymentSession{ID: "cs"}, nil
}

func newRegistry(t *testing.T, persist persistence.Store) *Registry {
	t.Helper()
	reg, err := NewRegistry(Params{
		Logger:      logger.Nop(),
		Persistence: persist,
		Gateway:     nopGateway{},
		IdleTTL:     10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestGetReusesWorkspace(t *testing.T) {
	reg := newRegistry(t, persistence.NewMemory())
	ctx := context.Background()

	a, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	b, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	c, err := reg.Get(ctx, "s2")
	require.NoError(t, err)

	if a != b {
		t.Fatal("expected the same workspace for one session")
	}
	if a == c {
		t.Fatal("expected distinct workspaces per session")
	}
	require.Equal(t, 2, reg.Len())
}

// blockingStore holds loads of one key until release is closed.
type blockingStore struct {
	*persistence.Memory
	key     string
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Load(ctx context.Context, key string) ([]byte, error) {
	if key == b.key {
		close(b.entered)
		<-b.release
	}
	return b.Memory.Load(ctx, key)
}

func TestSlowOpenDoesNotBlockOtherSessions(t *testing.T) {
	persist := &blockingStore{
		Memory:  persistence.NewMemory(),
		key:     persistence.Key("cart", "slow-session"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	reg := newRegistry(t, persist)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := reg.Get(ctx, "slow-session")
		done <- err
	}()
	<-persist.entered

	fast := make(chan error, 1)
	go func() {
		_, err := reg.Get(ctx, "fast-session")
		fast <- err
	}()
	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("opening one session waited on another session's load")
	}

	close(persist.release)
	require.NoError(t, <-done)
	require.Equal(t, 2, reg.Len())
}

func TestGetRejectsBlankSession(t *testing.T) {
	reg := newRegistry(t, persistence.NewMemory())
	if _, err := reg.Get(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank session id")
	}
}

func TestPruneDropsIdleAndCartReloads(t *testing.T) {
	persist := persistence.NewMemory()
	reg := newRegistry(t, persist)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return base }

	ws, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	restaurant := menu.Restaurant{ID: uuid.New(), Name: "Luigi"}
	item := menu.Item{ID: uuid.New(), Name: "Pizza", Price: decimal.RequireFromString("9.00")}
	_, err = ws.Cart.AddItem(ctx, restaurant, item, nil, 1)
	require.NoError(t, err)

	_, err = reg.Get(ctx, "s2")
	require.NoError(t, err)

	// s2 stays active, s1 goes idle
	reg.now = func() time.Time { return base.Add(8 * time.Minute) }
	_, err = reg.Get(ctx, "s2")
	require.NoError(t, err)

	reg.now = func() time.Time { return base.Add(15 * time.Minute) }
	require.Equal(t, 1, reg.Prune())
	require.Equal(t, 1, reg.Len())

	reopened, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	if reopened == ws {
		t.Fatal("expected a fresh workspace after pruning")
	}
	require.Len(t, reopened.Cart.Snapshot().Items, 1)
}

func TestCartMutationKeepsWorkspaceAlive(t *testing.T) {
	reg := newRegistry(t, persistence.NewMemory())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return base }

	ws, err := reg.Get(ctx, "s1")
	require.NoError(t, err)

	reg.now = func() time.Time { return base.Add(9 * time.Minute) }
	_, err = ws.Cart.AddItem(ctx, menu.Restaurant{ID: uuid.New()}, menu.Item{ID: uuid.New(), Price: decimal.NewFromInt(1)}, nil, 1)
	require.NoError(t, err)
	require.Equal(t, base.Add(9*time.Minute), ws.LastSeen().UTC())

	reg.now = func() time.Time { return base.Add(15 * time.Minute) }
	require.Zero(t, reg.Prune())
}

func TestRunStopsOnCancel(t *testing.T) {
	reg := newRegistry(t, persistence.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx, time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

type purgingStore struct {
	*persistence.Memory
	purged atomic.Int32
}

func (p *purgingStore) PurgeExpired(context.Context) (int64, error) {
	p.purged.Add(1)
	return 0, nil
}

func TestRunSweepsExpiredSnapshots(t *testing.T) {
	store := &purgingStore{Memory: persistence.NewMemory()}
	reg := newRegistry(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = reg.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return store.purged.Load() > 0 }, time.Second, time.Millisecond)
}

func TestNewRegistryValidates(t *testing.T) {
	if _, err := NewRegistry(Params{}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := NewRegistry(Params{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without persistence")
	}
}
