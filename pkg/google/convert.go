package google

import (
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/timebox/pkg/model"
)

// Private extended properties written on every event this app creates.
const (
	PropOwner     = "timebox_owner"
	PropOwnerKind = "timebox_kind"
	PropOwnerID   = "timebox_owner_id"
	PropTag       = "timebox_tag"
)

// OwnerKey identifies the local block an event was written for. It is the
// event index key and the value of the timebox_owner property.
func OwnerKey(ev model.RemoteEvent) string {
	return fmt.Sprintf("%s:%s:%s", ev.OwnerKind, ev.OwnerID, ev.Start.Format(model.DateFormat))
}

// ToCalendarEvent builds the API shape of ev.
func ToCalendarEvent(ev model.RemoteEvent) (*calendar.Event, error) {
	if ev.Start.IsZero() || ev.End.IsZero() || !ev.End.After(ev.Start) {
		return nil, fmt.Errorf("event %q has an invalid time range", ev.Title)
	}
	out := &calendar.Event{
		Summary: ev.Title,
		ColorId: ev.ColorID,
		Start:   &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}
	if ev.OwnerID != "" {
		private := map[string]string{
			PropOwner:     OwnerKey(ev),
			PropOwnerKind: string(ev.OwnerKind),
			PropOwnerID:   ev.OwnerID,
		}
		if ev.Tag != "" {
			private[PropTag] = ev.Tag
		}
		out.ExtendedProperties = &calendar.EventExtendedProperties{Private: private}
	}
	return out, nil
}

// FromCalendarEvent converts an API event. Cancelled and all-day events are
// skipped.
func FromCalendarEvent(e *calendar.Event, calendarID string) (model.RemoteEvent, bool) {
	if e == nil || e.Status == "cancelled" || e.Start == nil || e.End == nil {
		return model.RemoteEvent{}, false
	}
	if e.Start.DateTime == "" || e.End.DateTime == "" {
		return model.RemoteEvent{}, false
	}
	start, err := time.Parse(time.RFC3339, e.Start.DateTime)
	if err != nil {
		return model.RemoteEvent{}, false
	}
	end, err := time.Parse(time.RFC3339, e.End.DateTime)
	if err != nil {
		return model.RemoteEvent{}, false
	}

	ev := model.RemoteEvent{
		RemoteID:   e.Id,
		Title:      e.Summary,
		Start:      start,
		End:        end,
		ColorID:    e.ColorId,
		CalendarID: calendarID,
		Editable:   e.Organizer != nil && e.Organizer.Self && !e.Locked,
	}
	if e.ExtendedProperties != nil && e.ExtendedProperties.Private != nil {
		p := e.ExtendedProperties.Private
		ev.OwnerKind = model.OwnerKind(p[PropOwnerKind])
		ev.OwnerID = p[PropOwnerID]
		ev.Tag = p[PropTag]
	}
	return ev, true
}

// EventNeedsUpdate returns a patch with the fields of target that differ from
// existing, or nil when they match.
func EventNeedsUpdate(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if target.ColorId != "" && existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	same, err := sameInstant(existing.Start, target.Start)
	if err != nil {
		return nil, err
	}
	sameEnd, err := sameInstant(existing.End, target.End)
	if err != nil {
		return nil, err
	}
	if !same || !sameEnd {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameInstant(a, b *calendar.EventDateTime) (bool, error) {
	if a == nil || b == nil || a.DateTime == "" || b.DateTime == "" {
		return a == nil && b == nil, nil
	}
	ta, err := time.Parse(time.RFC3339, a.DateTime)
	if err != nil {
		return false, err
	}
	tb, err := time.Parse(time.RFC3339, b.DateTime)
	if err != nil {
		return false, err
	}
	return ta.Equal(tb), nil
}

// ownerQuery is the privateExtendedProperty filter for an owner key.
func ownerQuery(key string) string {
	return PropOwner + "=" + key
}
