package google

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/timebox/pkg/colors"
	"github.com/harrisonrobin/timebox/pkg/index"
	"github.com/harrisonrobin/timebox/pkg/logger"
	"github.com/harrisonrobin/timebox/pkg/model"
	"github.com/harrisonrobin/timebox/pkg/remote"
)

// CalendarClient is a Google Calendar API client for one calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	colors     *colors.Cache
}

var _ remote.Provider = (*CalendarClient)(nil)

// NewCalendarClient wraps srv. idx and cc may be nil.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, cc *colors.Cache) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, colors: cc}
}

func (c *CalendarClient) CalendarID() string {
	return c.calendarID
}

// Fetch lists timed events overlapping [timeMin, timeMax), expanding
// recurrences into single instances.
func (c *CalendarClient) Fetch(ctx context.Context, timeMin, timeMax time.Time) ([]model.RemoteEvent, error) {
	var out []model.RemoteEvent
	call := c.srv.Events.List(c.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		MaxResults(250)
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if ev, ok := FromCalendarEvent(item, c.calendarID); ok {
				out = append(out, ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify("list events", err)
	}
	logger.Debug("Fetched calendar events", "calendar", c.calendarID, "count", len(out))
	return out, nil
}

// Create writes ev and returns its id. An event already written for the same
// owner is patched instead of duplicated.
func (c *CalendarClient) Create(ctx context.Context, ev model.RemoteEvent) (string, error) {
	c.applyColor(&ev)
	target, err := ToCalendarEvent(ev)
	if err != nil {
		return "", err
	}

	var existing *calendar.Event
	key := ""
	if ev.OwnerID != "" {
		key = OwnerKey(ev)
		existing, err = c.findOwned(ctx, key)
		if err != nil {
			return "", err
		}
	}

	if existing != nil {
		patch, err := EventNeedsUpdate(existing, target)
		if err != nil {
			return "", err
		}
		if patch != nil {
			if _, err := c.PatchEvent(ctx, existing.Id, patch); err != nil {
				return "", err
			}
		}
		c.remember(key, existing.Id)
		return existing.Id, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, target).Context(ctx).Do()
	if err != nil {
		return "", classify("create event", err)
	}
	c.remember(key, created.Id)
	logger.Debug("Created calendar event", "event", created.Id, "owner", key)
	return created.Id, nil
}

// findOwned looks the owner key up in the local index first and falls back to
// a search by private extended property.
func (c *CalendarClient) findOwned(ctx context.Context, key string) (*calendar.Event, error) {
	if c.index != nil {
		if id := c.index.Get(key); id != "" {
			existing, err := c.srv.Events.Get(c.calendarID, id).Context(ctx).Do()
			if err == nil && existing.Status != "cancelled" {
				return existing, nil
			}
			c.index.Remove(key)
		}
	}
	return c.GetEventByOwner(ctx, key)
}

// GetEventByOwner searches for the event carrying the owner key.
func (c *CalendarClient) GetEventByOwner(ctx context.Context, key string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(ownerQuery(key)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("search events", err)
	}
	for _, item := range events.Items {
		if item.Status != "cancelled" {
			return item, nil
		}
	}
	return nil, nil
}

// Update patches title, times and colour of an existing event.
func (c *CalendarClient) Update(ctx context.Context, ev model.RemoteEvent) error {
	if ev.RemoteID == "" {
		return fmt.Errorf("update: event has no id")
	}
	c.applyColor(&ev)
	target, err := ToCalendarEvent(ev)
	if err != nil {
		return err
	}
	patch := &calendar.Event{Summary: target.Summary, Start: target.Start, End: target.End, ColorId: target.ColorId}
	_, err = c.PatchEvent(ctx, ev.RemoteID, patch)
	return err
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	updated, err := c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
	if err != nil {
		return nil, classify("patch event", err)
	}
	return updated, nil
}

// Delete removes an event. Events that are already gone count as deleted.
func (c *CalendarClient) Delete(ctx context.Context, remoteID string) error {
	err := c.srv.Events.Delete(c.calendarID, remoteID).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return classify("delete event", err)
	}
	if c.index != nil {
		c.index.RemoveEvent(remoteID)
		if err := c.index.Save(); err != nil {
			logger.Warn("Failed to save event index", "error", err)
		}
	}
	return nil
}

func (c *CalendarClient) applyColor(ev *model.RemoteEvent) {
	if ev.ColorID != "" || c.colors == nil {
		return
	}
	ev.ColorID = c.colors.ColorID(ev.Tag)
	if err := c.colors.Save(); err != nil {
		logger.Warn("Failed to save tag colours", "error", err)
	}
}

func (c *CalendarClient) remember(key, eventID string) {
	if c.index == nil || key == "" {
		return
	}
	c.index.Set(key, eventID)
	if err := c.index.Save(); err != nil {
		logger.Warn("Failed to save event index", "error", err)
	}
}
