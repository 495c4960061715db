package google

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/timebox/pkg/colors"
	"github.com/harrisonrobin/timebox/pkg/index"
)

// Scopes requested for the calendar credential.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// NewClient creates a calendar client for the calendar named calendarName,
// authenticated through httpClient. Extra options are passed to the service.
func NewClient(ctx context.Context, httpClient *http.Client, calendarName string, idx *index.EventIndex, cc *colors.Cache, opts ...option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %v", err)
	}

	calendarID, err := ResolveCalendar(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(srv, calendarID, idx, cc), nil
}

// ResolveCalendar finds the id of the calendar whose summary is name.
// "primary" and ids are accepted as is.
func ResolveCalendar(ctx context.Context, srv *calendar.Service, name string) (string, error) {
	if name == "" || name == "primary" {
		return "primary", nil
	}
	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", classify("list calendars", err)
	}

	for _, item := range calendarList.Items {
		if item.Summary == name || item.Id == name {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s' not found", name)
}
