package instance

import (
	"os"

	"github.com/angelmondragon/marketplace-checkout/pkg/env"
)

// GetID names the running api process in logs: CHECKOUT_INSTANCE_ID, then the
// platform's DYNO, then the hostname.
func GetID() string {
	if id := env.First("CHECKOUT_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
