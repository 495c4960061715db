// Package remote defines the contract of the external calendar provider.
package remote

import (
	"context"
	"time"

	"github.com/harrisonrobin/timebox/pkg/model"
)

// Provider is the external calendar. Implementations classify failures as
// errs.ErrAuthExpired or errs.ErrTransient.
type Provider interface {
	// Fetch lists events overlapping [timeMin, timeMax).
	Fetch(ctx context.Context, timeMin, timeMax time.Time) ([]model.RemoteEvent, error)
	// Create writes a new event and returns its id.
	Create(ctx context.Context, ev model.RemoteEvent) (string, error)
	// Update overwrites title and times of an existing event.
	Update(ctx context.Context, ev model.RemoteEvent) error
	// Delete removes an event. Deleting an already deleted event succeeds.
	Delete(ctx context.Context, remoteID string) error
}
