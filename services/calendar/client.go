package calendar

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"agendo/models"
	"agendo/services/credentials"
	"agendo/utils"
)

const (
	primaryCalendar = "primary"
	maxAttempts     = 3
	retryBaseDelay  = 500 * time.Millisecond
)

// TokenSource yields a valid bearer token for an instance.
type TokenSource interface {
	GetValidToken(ctx context.Context, instanceID string) (string, error)
}

// EventInput describes a calendar event to insert.
type EventInput struct {
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
}

// Client talks to the Google Calendar API on behalf of instances,
// authenticating through the credential store.
type Client struct {
	Tokens TokenSource
}

// NewClient creates a calendar client using the given token source.
func NewClient(tokens *credentials.Store) *Client {
	return &Client{Tokens: tokens}
}

func (c *Client) service(ctx context.Context, instanceID string) (*gcal.Service, error) {
	token, err := c.Tokens.GetValidToken(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	svc, err := gcal.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar service: %w", err)
	}
	return svc, nil
}

// BusyIntervals lists existing events in [from, to) on the primary
// calendar. A fetch failure is a hard error: reporting availability
// without the busy set would silently double-book.
func (c *Client) BusyIntervals(ctx context.Context, instanceID string, from, to time.Time) ([]models.BusyInterval, error) {
	svc, err := c.service(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	var events *gcal.Events
	err = utils.Retry(ctx, maxAttempts, retryBaseDelay, func() error {
		var callErr error
		events, callErr = svc.Events.List(primaryCalendar).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		if callErr != nil && !isRetryable(callErr) {
			return utils.Permanent(callErr) // no point waiting out a 4xx
		}
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	var busy []models.BusyInterval
	for _, item := range events.Items {
		start, end, ok := eventTimes(item)
		if !ok {
			continue // all-day events carry only dates; skip them
		}
		busy = append(busy, models.BusyInterval{
			Start:   start,
			End:     end,
			Summary: item.Summary,
		})
	}
	return busy, nil
}

// CreateEvent inserts an event on the primary calendar and returns the
// external event id.
func (c *Client) CreateEvent(ctx context.Context, instanceID string, input EventInput) (string, error) {
	svc, err := c.service(ctx, instanceID)
	if err != nil {
		return "", err
	}

	event := &gcal.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start:       &gcal.EventDateTime{DateTime: input.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: input.End.Format(time.RFC3339)},
	}
	if input.AttendeeEmail != "" {
		event.Attendees = []*gcal.EventAttendee{{Email: input.AttendeeEmail}}
	}

	var created *gcal.Event
	err = utils.Retry(ctx, maxAttempts, retryBaseDelay, func() error {
		var callErr error
		created, callErr = svc.Events.Insert(primaryCalendar, event).
			SendUpdates("all").
			Context(ctx).
			Do()
		if callErr != nil && !isRetryable(callErr) {
			return utils.Permanent(callErr)
		}
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert calendar event: %w", err)
	}

	utils.GetLogger().Info("calendar event created",
		zap.String("instanceID", instanceID), zap.String("eventID", created.Id))
	return created.Id, nil
}

func eventTimes(event *gcal.Event) (time.Time, time.Time, bool) {
	if event.Start == nil || event.End == nil ||
		event.Start.DateTime == "" || event.End.DateTime == "" {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, event.Start.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, event.End.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func isRetryable(err error) bool {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return apiErr.Code >= 500 || apiErr.Code == 429
	}
	// Transport-level failures (timeouts, resets) are worth retrying.
	return true
}
