package model

import (
	"fmt"
	"time"

	"github.com/harrisonrobin/timebox/pkg/timegrid"
)

// RemoteEntryPrefix namespaces ids of entries built from remote events so
// they cannot collide with local uuids in one day's rendered set.
const RemoteEntryPrefix = "remote-"

// ToEntry projects ev onto the local calendar day of its start in loc. Events
// that end on a later local day (other than exactly at the next midnight) are
// not representable and return false.
func ToEntry(ev RemoteEvent, loc *time.Location) (TimedEntry, bool) {
	if ev.RemoteID == "" || ev.Start.IsZero() || ev.End.IsZero() || !ev.End.After(ev.Start) {
		return TimedEntry{}, false
	}
	start := ev.Start.In(loc)
	end := ev.End.In(loc)

	y, m, d := start.Date()
	nextMidnight := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	startHour := timegrid.HourOf(start)
	var endHour float64
	switch {
	case end.Equal(nextMidnight):
		endHour = timegrid.HoursPerDay
	case end.Format(DateFormat) != start.Format(DateFormat):
		return TimedEntry{}, false
	default:
		endHour = timegrid.HourOf(end)
	}

	kind := ev.OwnerKind
	if kind == "" {
		kind = OwnerFree
	}
	dur := timegrid.ClampDuration(endHour - startHour)
	return TimedEntry{
		ID:           RemoteEntryPrefix + ev.RemoteID,
		Date:         start.Format(DateFormat),
		Title:        ev.Title,
		StartHour:    timegrid.ClampStart(startHour, dur),
		DurationHour: dur,
		Tag:          ev.Tag,
		ColorID:      ev.ColorID,
		OwnerKind:    kind,
		OwnerID:      ev.OwnerID,
		Origin:       OriginRemote,
		RemoteID:     ev.RemoteID,
		Editable:     ev.Editable || ev.Owned(),
	}, true
}

// ToRemoteEvent builds the provider shape of e with instants in loc.
func ToRemoteEvent(e TimedEntry, loc *time.Location) (RemoteEvent, error) {
	day, err := time.ParseInLocation(DateFormat, e.Date, loc)
	if err != nil {
		return RemoteEvent{}, fmt.Errorf("entry %s has invalid date %q: %w", e.ID, e.Date, err)
	}
	return RemoteEvent{
		RemoteID:  e.RemoteID,
		Title:     e.Title,
		Start:     timegrid.At(day, e.StartHour, loc),
		End:       timegrid.At(day, e.StartHour+e.DurationHour, loc),
		Tag:       e.Tag,
		ColorID:   e.ColorID,
		OwnerKind: e.OwnerKind,
		OwnerID:   e.OwnerID,
		Editable:  true,
	}, nil
}
