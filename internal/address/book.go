package address

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/angelmondragon/marketplace-checkout/internal/persistence"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
	"github.com/google/uuid"
)

const snapshotKind = "addresses"

// Address is a delivery address the customer can pick again on a later checkout.
type Address struct {
	ID           uuid.UUID `json:"id"`
	Street       string    `json:"street"`
	City         string    `json:"city"`
	PostalCode   string    `json:"postal_code"`
	Instructions string    `json:"instructions,omitempty"`
}

// Normalize trims every field.
func (a Address) Normalize() Address {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Instructions = strings.TrimSpace(a.Instructions)
	return a
}

// IsComplete reports whether street, city and postal code are all present.
func (a Address) IsComplete() bool {
	n := a.Normalize()
	return n.Street != "" && n.City != "" && n.PostalCode != ""
}

// SameLocation compares street, city and postal code ignoring case and spacing.
func (a Address) SameLocation(other Address) bool {
	return fold(a.Street) == fold(other.Street) &&
		fold(a.City) == fold(other.City) &&
		fold(a.PostalCode) == fold(other.PostalCode)
}

func fold(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// Book stores saved addresses per owner (a user or an anonymous session).
type Book struct {
	mu      sync.Mutex
	persist persistence.Store
	logg    *logger.Logger
}

func NewBook(persist persistence.Store, logg *logger.Logger) *Book {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Book{persist: persist, logg: logg}
}

// List returns the owner's addresses. A malformed snapshot reads as empty.
func (b *Book) List(ctx context.Context, owner string) ([]Address, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx, owner)
}

// Get returns one saved address.
func (b *Book) Get(ctx context.Context, owner string, id uuid.UUID) (Address, error) {
	list, err := b.List(ctx, owner)
	if err != nil {
		return Address{}, err
	}
	for _, addr := range list {
		if addr.ID == id {
			return addr, nil
		}
	}
	return Address{}, pkgerrors.New(pkgerrors.CodeNotFound, "saved address not found")
}

// Save adds addr unless an entry for the same location exists. It returns the
// stored entry and whether a new one was created.
func (b *Book) Save(ctx context.Context, owner string, addr Address) (Address, bool, error) {
	addr = addr.Normalize()
	if !addr.IsComplete() {
		return Address{}, false, pkgerrors.New(pkgerrors.CodeValidation, "street, city and postal code are required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.load(ctx, owner)
	if err != nil {
		return Address{}, false, err
	}
	for _, existing := range list {
		if existing.SameLocation(addr) {
			return existing, false, nil
		}
	}

	addr.ID = uuid.New()
	list = append(list, addr)
	if err := persistence.SaveJSON(ctx, b.persist, persistence.Key(snapshotKind, owner), list); err != nil {
		return Address{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist address book")
	}
	return addr, true, nil
}

func (b *Book) load(ctx context.Context, owner string) ([]Address, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address owner is required")
	}
	var list []Address
	_, err := persistence.LoadJSON(ctx, b.persist, persistence.Key(snapshotKind, owner), &list)
	if errors.Is(err, persistence.ErrMalformed) {
		b.logg.Warn(b.logg.WithField(ctx, "owner", owner), "address.snapshot_malformed")
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address book")
	}
	valid := list[:0]
	for _, addr := range list {
		if addr.ID != uuid.Nil && addr.IsComplete() {
			valid = append(valid, addr)
		}
	}
	return valid, nil
}
