package gcal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/emsham/tethru/internal/instrumentation"
)

// DefaultCalendarID is the user's primary calendar, the target of all sync
// writes unless configured otherwise.
const DefaultCalendarID = "primary"

// TokenSource resolves access tokens for calendar requests. Implemented by
// the OAuth lifecycle manager.
type TokenSource interface {
	// AccessToken returns a currently valid access token, refreshing
	// silently when the persisted one is expired.
	AccessToken(ctx context.Context) (string, error)

	// ForceRefresh refreshes unconditionally and returns the new access
	// token. Used when the provider rejected a token the local expiry check
	// still considered valid.
	ForceRefresh(ctx context.Context) (string, error)
}

// Client wraps the Google Calendar service. Every request is funneled
// through a single authenticated transport that resolves a token, and on a
// 401 forces a refresh and retries the request exactly once.
type Client struct {
	svc     *calendar.Service
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewClient creates a calendar client on top of the given token source.
// Extra options (such as a test endpoint) are appended after the
// authenticated HTTP client.
func NewClient(ctx context.Context, tokens TokenSource, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Force HTTP/1.1 by disabling HTTP/2
	base := &http.Transport{
		ForceAttemptHTTP2: false,
	}
	httpClient := &http.Client{
		Transport: &authTransport{tokens: tokens, base: base},
	}

	allOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, logger: logger}, nil
}

// SetMetrics attaches a metrics recorder.
func (c *Client) SetMetrics(metrics *instrumentation.Metrics) {
	c.metrics = metrics
}

// authTransport is the single authenticated-request primitive. It resolves a
// valid access token, issues the request, and on a 401 forces a token
// refresh and retries exactly once with the new token. The provider is
// authoritative on expiry; a 401 triggers the refresh even when the local
// expiry check had not fired.
type authTransport struct {
	tokens TokenSource
	base   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	access, err := t.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(withBearer(req, access))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// Drain so the connection can be reused before the retry.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	access, err = t.tokens.ForceRefresh(ctx)
	if err != nil {
		return nil, err
	}

	retry := withBearer(req, access)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body for retry: %w", err)
		}
		retry.Body = body
	}
	return t.base.RoundTrip(retry)
}

func withBearer(req *http.Request, access string) *http.Request {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+access)
	return r
}

// CreateEvent inserts a new event and returns the created resource.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		c.metrics.RecordAPIOperation(ctx, "createEvent", instrumentation.ResultError)
		return nil, wrapAPIError("createEvent", err)
	}
	c.metrics.RecordAPIOperation(ctx, "createEvent", instrumentation.ResultSuccess)
	return created, nil
}

// UpdateEvent replaces an existing event wholesale. This is a full replace,
// not a patch: the payload is rebuilt from the CRM fact each time, so fields
// cleared on the CRM side disappear from the event as well.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	updated, err := c.svc.Events.Update(calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		c.metrics.RecordAPIOperation(ctx, "updateEvent", instrumentation.ResultError)
		return nil, wrapAPIError("updateEvent", err)
	}
	c.metrics.RecordAPIOperation(ctx, "updateEvent", instrumentation.ResultSuccess)
	return updated, nil
}

// DeleteEvent deletes an event. Deletion is idempotent: a "not found" or
// "gone" response counts as success, and the provider's 204 no-content reply
// is a valid empty success.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		wrapped := wrapAPIError("deleteEvent", err)
		if IsNotFound(wrapped) {
			c.logger.Debug("event already gone", slog.String("event_id", eventID))
			c.metrics.RecordAPIOperation(ctx, "deleteEvent", instrumentation.ResultSuccess)
			return nil
		}
		c.metrics.RecordAPIOperation(ctx, "deleteEvent", instrumentation.ResultError)
		return wrapped
	}
	c.metrics.RecordAPIOperation(ctx, "deleteEvent", instrumentation.ResultSuccess)
	return nil
}

// GetEvent retrieves a specific event by ID.
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	event, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		c.metrics.RecordAPIOperation(ctx, "getEvent", instrumentation.ResultError)
		return nil, wrapAPIError("getEvent", err)
	}
	c.metrics.RecordAPIOperation(ctx, "getEvent", instrumentation.ResultSuccess)
	return event, nil
}

// ListCalendars lists all calendars accessible to the user.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	list, err := c.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		c.metrics.RecordAPIOperation(ctx, "listCalendars", instrumentation.ResultError)
		return nil, wrapAPIError("listCalendars", err)
	}
	c.metrics.RecordAPIOperation(ctx, "listCalendars", instrumentation.ResultSuccess)

	var calendars []CalendarInfo
	for _, entry := range list.Items {
		calendars = append(calendars, toCalendarInfo(entry))
	}
	return calendars, nil
}

// CalendarInfo represents information about a calendar.
type CalendarInfo struct {
	ID          string
	Summary     string
	Description string
	TimeZone    string
	Primary     bool
	AccessRole  string // "owner", "writer", "reader", "freeBusyReader"
}

// toCalendarInfo converts a Google Calendar list entry to CalendarInfo.
func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	if entry == nil {
		return CalendarInfo{}
	}
	return CalendarInfo{
		ID:          entry.Id,
		Summary:     entry.Summary,
		Description: entry.Description,
		TimeZone:    entry.TimeZone,
		Primary:     entry.Primary,
		AccessRole:  entry.AccessRole,
	}
}
