package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/angelmondragon/marketplace-checkout/internal/menu"
	"github.com/angelmondragon/marketplace-checkout/internal/persistence"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

type fixture struct {
	restaurant menu.Restaurant
	pizza      menu.Item
	water      menu.Item
	large      menu.Option
	olives     menu.Option
	discount   menu.Option
}

func newFixture() fixture {
	restaurant := menu.Restaurant{ID: uuid.New(), Name: "Luigi", DeliveryFee: d("2.50"), MinimumOrder: d("15.00")}
	return fixture{
		restaurant: restaurant,
		pizza:      menu.Item{ID: uuid.New(), RestaurantID: restaurant.ID, Name: "Margherita", Price: d("10.00")},
		water:      menu.Item{ID: uuid.New(), RestaurantID: restaurant.ID, Name: "Water", Price: d("2.00")},
		large:      menu.Option{ID: uuid.New(), Name: "Large", PriceModifier: d("1.50"), IsAvailable: true},
		olives:     menu.Option{ID: uuid.New(), Name: "Olives", PriceModifier: d("0"), IsAvailable: true},
		discount:   menu.Option{ID: uuid.New(), Name: "No cheese", PriceModifier: d("-1.00"), IsAvailable: true},
	}
}

func openStore(t *testing.T, persist persistence.Store) *Store {
	t.Helper()
	store, err := Open(context.Background(), "session-1", persist, nil)
	require.NoError(t, err)
	return store
}

type recorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *recorder) IncMutation(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func TestAddIdenticalItemMergesQuantity(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	ctx := context.Background()

	first, err := store.AddItem(ctx, f.restaurant, f.pizza, []menu.Option{f.large, f.olives}, 2)
	require.NoError(t, err)
	// same option set in a different order
	second, err := store.AddItem(ctx, f.restaurant, f.pizza, []menu.Option{f.olives, f.large}, 3)
	require.NoError(t, err)

	require.Equal(t, first.Key, second.Key)
	snap := store.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 5, snap.Items[0].Quantity)
	assert.True(t, snap.Items[0].UnitPrice().Equal(d("11.50")))
}

func TestAddDifferentOptionsCreatesNewLine(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	ctx := context.Background()

	_, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 1)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, f.restaurant, f.pizza, []menu.Option{f.large}, 1)
	require.NoError(t, err)

	require.Len(t, store.Snapshot().Items, 2)
}

func TestAddFromOtherRestaurantReplacesCart(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	ctx := context.Background()

	res, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 1)
	require.NoError(t, err)
	assert.False(t, res.RestaurantReplaced)

	other := menu.Restaurant{ID: uuid.New(), Name: "Sushi Bar", DeliveryFee: d("3.00")}
	roll := menu.Item{ID: uuid.New(), RestaurantID: other.ID, Name: "Roll", Price: d("7.00")}
	res, err = store.AddItem(ctx, other, roll, nil, 2)
	require.NoError(t, err)
	assert.True(t, res.RestaurantReplaced)

	snap := store.Snapshot()
	require.Equal(t, other.ID, snap.RestaurantID)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, roll.ID, snap.Items[0].MenuItemID)
	assert.True(t, snap.DeliveryFee.Equal(d("3.00")))
}

func TestAddRejectsForeignItemAndBadQuantity(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	ctx := context.Background()

	foreign := f.pizza
	foreign.RestaurantID = uuid.New()
	_, err := store.AddItem(ctx, f.restaurant, foreign, nil, 1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = store.AddItem(ctx, f.restaurant, f.pizza, nil, 0)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, store.Version())
}

func TestScenarioASubtotal(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())

	_, err := store.AddItem(context.Background(), f.restaurant, f.pizza, []menu.Option{f.large}, 2)
	require.NoError(t, err)
	require.True(t, store.Snapshot().Subtotal().Equal(d("23.00")))
}

func TestSubtotalWithZeroAndNegativeModifiers(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	ctx := context.Background()

	_, err := store.AddItem(ctx, f.restaurant, f.pizza, []menu.Option{f.discount, f.olives}, 3)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, f.restaurant, f.water, nil, 2)
	require.NoError(t, err)

	snap := store.Snapshot()
	for _, item := range snap.Items {
		mods := decimal.Zero
		for _, opt := range item.SelectedVariantOptions {
			mods = mods.Add(opt.PriceModifier)
		}
		require.True(t, item.UnitPrice().Equal(item.BasePrice.Add(mods)))
	}
	require.True(t, snap.Subtotal().Equal(d("31.00")), "got %s", snap.Subtotal())
}

func TestUpdateQuantity(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	ctx := context.Background()

	res, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 1)
	require.NoError(t, err)

	snap, err := store.UpdateQuantity(ctx, res.Key, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Items[0].Quantity)

	snap, err = store.UpdateQuantity(ctx, res.Key, 0)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
	assert.Equal(t, uuid.Nil, snap.RestaurantID)

	_, err = store.UpdateQuantity(ctx, res.Key, 2)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateQuantityByBareMenuItemID(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	ctx := context.Background()

	_, err := store.AddItem(ctx, f.restaurant, f.water, nil, 1)
	require.NoError(t, err)
	snap, err := store.UpdateQuantity(ctx, f.water.ID.String(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Items[0].Quantity)
}

func TestUpdateItemVariants(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	ctx := context.Background()

	res, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 2)
	require.NoError(t, err)

	newKey, snap, err := store.UpdateItemVariants(ctx, res.Key, []menu.Option{f.large})
	require.NoError(t, err)
	require.NotEqual(t, res.Key, newKey)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.True(t, snap.Items[0].UnitPrice().Equal(d("11.50")))
	assert.Equal(t, []uuid.UUID{f.large.ID}, snap.Items[0].SelectedVariantOptionIDs)
}

func TestUpdateItemVariantsMergesCollidingLine(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	ctx := context.Background()

	plain, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 2)
	require.NoError(t, err)
	_, err = store.UpdateItemNotes(ctx, plain.Key, "well done")
	require.NoError(t, err)
	large, err := store.AddItem(ctx, f.restaurant, f.pizza, []menu.Option{f.large}, 1)
	require.NoError(t, err)

	newKey, snap, err := store.UpdateItemVariants(ctx, plain.Key, []menu.Option{f.large})
	require.NoError(t, err)
	require.Equal(t, large.Key, newKey)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Equal(t, "well done", snap.Items[0].SpecialInstructions)
}

func TestUpdateItemNotesTrims(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	ctx := context.Background()

	res, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 1)
	require.NoError(t, err)

	snap, err := store.UpdateItemNotes(ctx, res.Key, "  extra crispy \n")
	require.NoError(t, err)
	assert.Equal(t, "extra crispy", snap.Items[0].SpecialInstructions)

	snap, err = store.UpdateItemNotes(ctx, res.Key, "   ")
	require.NoError(t, err)
	assert.Empty(t, snap.Items[0].SpecialInstructions)
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture()
	persist := persistence.NewMemory()
	store := openStore(t, persist)
	ctx := context.Background()

	pizza, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 1)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, f.restaurant, f.water, nil, 1)
	require.NoError(t, err)

	snap, err := store.RemoveItem(ctx, pizza.Key)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)

	_, err = store.RemoveItem(ctx, pizza.Key)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	snap, err = store.Clear(ctx)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())

	if _, err := persist.Load(ctx, persistence.Key(snapshotKind, "session-1")); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected cleared snapshot, got %v", err)
	}
}

func TestCartSurvivesReload(t *testing.T) {
	f := newFixture()
	persist := persistence.NewMemory()
	ctx := context.Background()

	store := openStore(t, persist)
	res, err := store.AddItem(ctx, f.restaurant, f.pizza, []menu.Option{f.large}, 2)
	require.NoError(t, err)
	_, err = store.UpdateItemNotes(ctx, res.Key, "no basil")
	require.NoError(t, err)

	reloaded := openStore(t, persist)
	snap := reloaded.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, res.Key, snap.Items[0].Key)
	assert.Equal(t, "no basil", snap.Items[0].SpecialInstructions)
	assert.Equal(t, f.restaurant.ID, snap.RestaurantID)
	assert.True(t, snap.Subtotal().Equal(d("23.00")))
}

func TestMalformedSnapshotLoadsEmpty(t *testing.T) {
	persist := persistence.NewMemory()
	ctx := context.Background()
	require.NoError(t, persist.Save(ctx, persistence.Key(snapshotKind, "session-1"), []byte(`{"items": [`)))

	store := openStore(t, persist)
	assert.True(t, store.Snapshot().IsEmpty())
}

func TestSnapshotDropsInvalidLines(t *testing.T) {
	persist := persistence.NewMemory()
	ctx := context.Background()
	raw := `{"restaurant_id":"` + uuid.NewString() + `","items":[{"menu_item_id":"` + uuid.Nil.String() + `","quantity":1},{"menu_item_id":"` + uuid.NewString() + `","quantity":0}]}`
	require.NoError(t, persist.Save(ctx, persistence.Key(snapshotKind, "session-1"), []byte(raw)))

	store := openStore(t, persist)
	snap := store.Snapshot()
	assert.True(t, snap.IsEmpty())
	assert.Equal(t, uuid.Nil, snap.RestaurantID)
}

type failingStore struct {
	persistence.Store
	err error
}

func (f failingStore) Save(context.Context, string, []byte) error { return f.err }

func TestPersistFailureLeavesCartUnchanged(t *testing.T) {
	f := newFixture()
	store := openStore(t, failingStore{Store: persistence.NewMemory(), err: errors.New("disk full")})

	_, err := store.AddItem(context.Background(), f.restaurant, f.pizza, nil, 1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.True(t, store.Snapshot().IsEmpty())
	assert.Zero(t, store.Version())
}

func TestSubscribersReceiveEveryMutation(t *testing.T) {
	f := newFixture()
	rec := &recorder{}
	store, err := Open(context.Background(), "session-1", persistence.NewMemory(), nil, WithMetrics(rec))
	require.NoError(t, err)
	ctx := context.Background()

	var versions []uint64
	unsubscribe := store.Subscribe(func(s Snapshot) { versions = append(versions, s.Version) })

	res, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 1)
	require.NoError(t, err)
	_, err = store.UpdateQuantity(ctx, res.Key, 2)
	require.NoError(t, err)
	_, err = store.Clear(ctx)
	require.NoError(t, err)

	unsubscribe()
	_, err = store.AddItem(ctx, f.restaurant, f.pizza, nil, 1)
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2, 3}, versions)
	assert.Equal(t, uint64(4), store.Version())
	assert.Equal(t, []string{"add", "update_quantity", "clear", "add"}, rec.ops)
}

func TestPublishSkipsOlderSnapshots(t *testing.T) {
	store := openStore(t, persistence.NewMemory())
	var versions []uint64
	store.Subscribe(func(s Snapshot) { versions = append(versions, s.Version) })

	store.publish(Snapshot{Version: 2})
	store.publish(Snapshot{Version: 1})
	store.publish(Snapshot{Version: 3})

	assert.Equal(t, []uint64{2, 3}, versions)
}

func TestRemoveOrderedClearsUnchangedCart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	persist := persistence.NewMemory()
	store := openStore(t, persist)
	_, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 2)
	require.NoError(t, err)

	snap, err := store.RemoveOrdered(ctx, store.Snapshot())
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())

	_, err = persist.Load(ctx, persistence.Key(snapshotKind, "session-1"))
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestRemoveOrderedKeepsLinesAddedAfterSnapshot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	store := openStore(t, persistence.NewMemory())
	res, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 2)
	require.NoError(t, err)
	ordered := store.Snapshot()

	water, err := store.AddItem(ctx, f.restaurant, f.water, nil, 1)
	require.NoError(t, err)
	_, err = store.UpdateQuantity(ctx, res.Key, 3)
	require.NoError(t, err)

	snap, err := store.RemoveOrdered(ctx, ordered)
	require.NoError(t, err)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, 1, snap.Items[snap.Find(res.Key)].Quantity, "only the ordered quantity is taken")
	assert.Equal(t, 1, snap.Items[snap.Find(water.Key)].Quantity)
}

func TestRemoveOrderedIgnoresReplacedRestaurant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	store := openStore(t, persistence.NewMemory())
	_, err := store.AddItem(ctx, f.restaurant, f.pizza, nil, 1)
	require.NoError(t, err)
	ordered := store.Snapshot()

	other := menu.Restaurant{ID: uuid.New(), Name: "Sushi Go"}
	roll := menu.Item{ID: uuid.New(), RestaurantID: other.ID, Name: "Roll", Price: d("8.00")}
	_, err = store.AddItem(ctx, other, roll, nil, 1)
	require.NoError(t, err)

	snap, err := store.RemoveOrdered(ctx, ordered)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Roll", snap.Items[0].Name)
}

func TestSnapshotIsDetached(t *testing.T) {
	f := newFixture()
	store := openStore(t, persistence.NewMemory())
	_, err := store.AddItem(context.Background(), f.restaurant, f.pizza, []menu.Option{f.large}, 1)
	require.NoError(t, err)

	snap := store.Snapshot()
	snap.Items[0].Quantity = 99
	snap.Items[0].SelectedVariantOptions[0].Name = "mutated"

	fresh := store.Snapshot()
	assert.Equal(t, 1, fresh.Items[0].Quantity)
	assert.Equal(t, "Large", fresh.Items[0].SelectedVariantOptions[0].Name)
}

func TestOpenValidatesArguments(t *testing.T) {
	if _, err := Open(context.Background(), " ", persistence.NewMemory(), nil); err == nil {
		t.Fatal("expected error for blank session key")
	}
	if _, err := Open(context.Background(), "s", nil, nil); err == nil {
		t.Fatal("expected error for nil persistence")
	}
}

func TestLineKeyIgnoresOrder(t *testing.T) {
	item := uuid.New()
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, LineKey(item, []uuid.UUID{a, b}), LineKey(item, []uuid.UUID{b, a}))
	assert.Equal(t, item.String(), LineKey(item, nil))
}
