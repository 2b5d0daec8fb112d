package validators

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
)

const queryDateLayout = "2006-01-02"

// ParseQueryDate reads an optional YYYY-MM-DD query parameter. An empty value
// is returned unchanged.
func ParseQueryDate(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", nil
	}
	if _, err := time.Parse(queryDateLayout, raw); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a date").WithDetails(map[string]any{"field": key, "layout": queryDateLayout})
	}
	return raw, nil
}

// ParseUUIDs converts raw identifiers, reporting the first malformed one.
func ParseUUIDs(field string, raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"field": field, "value": value})
		}
		ids = append(ids, id)
	}
	return ids, nil
}
