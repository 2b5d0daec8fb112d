package checkout

import (
	"context"
	"errors"

	"github.com/angelmondragon/marketplace-checkout/internal/persistence"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
)

const contactKind = "contact"

// Contacts remembers guest contact details per session to pre-fill the next checkout.
type Contacts struct {
	persist persistence.Store
	logg    *logger.Logger
}

func NewContacts(persist persistence.Store, logg *logger.Logger) *Contacts {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Contacts{persist: persist, logg: logg}
}

// Remember stores the guest's details for sessionID.
func (c *Contacts) Remember(ctx context.Context, sessionID string, guest Guest) error {
	return persistence.SaveJSON(ctx, c.persist, persistence.Key(contactKind, sessionID), guest.Normalize())
}

// Recall returns the remembered details, or nil when none (or only malformed data) exist.
func (c *Contacts) Recall(ctx context.Context, sessionID string) (*Guest, error) {
	var guest Guest
	found, err := persistence.LoadJSON(ctx, c.persist, persistence.Key(contactKind, sessionID), &guest)
	if errors.Is(err, persistence.ErrMalformed) {
		c.logg.Warn(c.logg.WithSessionID(ctx, sessionID), "contact.snapshot_malformed")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &guest, nil
}
