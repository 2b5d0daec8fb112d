package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-checkout/api/middleware"
	"github.com/angelmondragon/marketplace-checkout/internal/menu"
	"github.com/angelmondragon/marketplace-checkout/internal/sessions"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
)

// Workspaces resolves the live state of a client session.
type Workspaces interface {
	Get(ctx context.Context, sessionID string) (*sessions.Workspace, error)
}

// Catalog reads restaurants and menus from the marketplace.
type Catalog interface {
	GetRestaurant(ctx context.Context, restaurantID uuid.UUID) (*menu.Restaurant, error)
	GetMenu(ctx context.Context, restaurantID uuid.UUID) (*menu.Menu, error)
}

func workspaceFor(r *http.Request, workspaces Workspaces) (*sessions.Workspace, error) {
	if workspaces == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable")
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session context missing")
	}
	return workspaces.Get(r.Context(), sessionID)
}
