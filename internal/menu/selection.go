package menu

import (
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/google/uuid"
)

// ResolveSelection validates the chosen option ids against the item's variant
// groups and returns the matching options in group order.
func ResolveSelection(item Item, optionIDs []uuid.UUID) ([]Option, error) {
	wanted := make(map[uuid.UUID]struct{}, len(optionIDs))
	for _, id := range optionIDs {
		if _, dup := wanted[id]; dup {
			return nil, selectionError(fmt.Sprintf("option %s selected more than once", id))
		}
		wanted[id] = struct{}{}
	}

	var (
		reasons  []string
		resolved []Option
		matched  = map[uuid.UUID]struct{}{}
	)
	for _, group := range item.Variants {
		count := 0
		for _, opt := range group.Options {
			if _, ok := wanted[opt.ID]; !ok {
				continue
			}
			matched[opt.ID] = struct{}{}
			if !opt.IsAvailable {
				reasons = append(reasons, fmt.Sprintf("%s: option %q is unavailable", group.Name, opt.Name))
				continue
			}
			count++
			resolved = append(resolved, opt)
		}

		minimum := group.MinSelections
		if group.IsRequired && minimum < 1 {
			minimum = 1
		}
		if count < minimum {
			reasons = append(reasons, fmt.Sprintf("%s: at least %d selection(s) required", group.Name, minimum))
		}
		if group.MaxSelections > 0 && count > group.MaxSelections {
			reasons = append(reasons, fmt.Sprintf("%s: at most %d selection(s) allowed", group.Name, group.MaxSelections))
		}
	}

	for _, id := range optionIDs {
		if _, ok := matched[id]; !ok {
			reasons = append(reasons, fmt.Sprintf("option %s does not belong to %s", id, item.Name))
		}
	}

	if len(reasons) > 0 {
		return nil, selectionError(reasons...)
	}
	return resolved, nil
}

func selectionError(reasons ...string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid variant selection: "+strings.Join(reasons, "; ")).
		WithDetails(map[string]any{"reasons": reasons})
}
