package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nugget/lifeops/internal/mcp"
)

// Tool names on the remote endpoint.
const (
	ToolCreate = "GOOGLECALENDAR_CREATE_EVENT"
	ToolUpdate = "GOOGLECALENDAR_UPDATE_EVENT"
	ToolDelete = "GOOGLECALENDAR_DELETE_EVENT"
	ToolList   = "GOOGLECALENDAR_EVENTS_LIST"
)

// defaultMaxResults is sent when a listing does not set a limit.
const defaultMaxResults = 10

// Invoker issues one remote tool call. *mcp.Client satisfies it.
type Invoker interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error)
}

// Event is a calendar event as returned by a listing.
type Event struct {
	ID          string   `json:"id"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Start       string   `json:"start,omitempty"`
	End         string   `json:"end,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	HTMLLink    string   `json:"htmlLink,omitempty"`
	Status      string   `json:"status,omitempty"`
}

func eventFrom(r gjson.Result) Event {
	ev := Event{
		ID:          r.Get("id").String(),
		Summary:     r.Get("summary").String(),
		Description: r.Get("description").String(),
		Location:    r.Get("location").String(),
		Start:       r.Get("start.dateTime").String(),
		End:         r.Get("end.dateTime").String(),
		HTMLLink:    r.Get("htmlLink").String(),
		Status:      r.Get("status").String(),
	}
	if ev.Start == "" {
		ev.Start = r.Get("start.date").String()
	}
	if ev.End == "" {
		ev.End = r.Get("end.date").String()
	}
	r.Get("attendees").ForEach(func(_, a gjson.Result) bool {
		email := a.String()
		if a.IsObject() {
			email = a.Get("email").String()
		}
		if email != "" {
			ev.Attendees = append(ev.Attendees, email)
		}
		return true
	})
	return ev
}

// itemPaths are the places an event list has been seen in tool payloads.
var itemPaths = []string{
	"data.items",
	"data.response_data.items",
	"response_data.items",
	"items",
}

func eventsFrom(payload []byte) []Event {
	list := gjson.ParseBytes(payload)
	if !list.IsArray() {
		list = gjson.Result{}
		for _, path := range itemPaths {
			if v := gjson.GetBytes(payload, path); v.IsArray() {
				list = v
				break
			}
		}
	}
	var events []Event
	list.ForEach(func(_, item gjson.Result) bool {
		events = append(events, eventFrom(item))
		return true
	})
	return events
}

// Window bounds an event listing.
type Window struct {
	Min        time.Time
	Max        time.Time
	MaxResults int
}

// Upcoming covers now through thirty days ahead. Name resolution for
// events uses it.
func Upcoming(now time.Time) Window {
	return Window{Min: now, Max: now.AddDate(0, 0, 30), MaxResults: 50}
}

// Recent covers a week back through thirty days ahead. Updates and
// deletes resolve and pre-fetch events through it.
func Recent(now time.Time) Window {
	return Window{Min: now.AddDate(0, 0, -7), Max: now.AddDate(0, 0, 30), MaxResults: 100}
}

// Client issues calendar tool calls against one calendar.
type Client struct {
	tools      Invoker
	calendarID string
	timezone   string
	logger     *slog.Logger
}

// NewClient creates a calendar client. An empty timezone falls back to
// UTC for calls that do not name one.
func NewClient(tools Invoker, calendarID, timezone string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		tools:      tools,
		calendarID: calendarID,
		timezone:   timezone,
		logger:     logger.With("component", "calendar"),
	}
}

// CalendarID returns the calendar the client writes to.
func (c *Client) CalendarID() string { return c.calendarID }

// List returns events in the window.
func (c *Client) List(ctx context.Context, w Window) ([]Event, error) {
	args := map[string]any{
		"calendarId": c.calendarID,
		"maxResults": w.MaxResults,
	}
	if w.MaxResults <= 0 {
		args["maxResults"] = defaultMaxResults
	}
	if !w.Min.IsZero() {
		args["timeMin"] = w.Min.UTC().Format(time.RFC3339)
	}
	if !w.Max.IsZero() {
		args["timeMax"] = w.Max.UTC().Format(time.RFC3339)
	}
	events, _, err := c.list(ctx, args)
	return events, err
}

// ListInput runs a listing with the bounds given in an action's params,
// passed through as written.
func (c *Client) ListInput(ctx context.Context, in *EventInput) ([]Event, *mcp.ToolResult, error) {
	args := map[string]any{
		"calendarId": c.calendarID,
		"maxResults": defaultMaxResults,
	}
	if in.MaxResults > 0 {
		args["maxResults"] = in.MaxResults
	}
	if in.TimeMin != "" {
		args["timeMin"] = in.TimeMin
	}
	if in.TimeMax != "" {
		args["timeMax"] = in.TimeMax
	}
	return c.list(ctx, args)
}

func (c *Client) list(ctx context.Context, args map[string]any) ([]Event, *mcp.ToolResult, error) {
	res, err := c.tools.CallTool(ctx, ToolList, args)
	if err != nil {
		return nil, nil, err
	}
	events := eventsFrom(res.Payload)
	c.logger.Debug("listed events", "count", len(events))
	return events, res, nil
}

// Find looks up an event by id within the window. It returns nil when
// the event is not listed there.
func (c *Client) Find(ctx context.Context, id string, w Window) (*Event, error) {
	events, err := c.List(ctx, w)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].ID == id {
			return &events[i], nil
		}
	}
	return nil, nil
}

// Create creates an event and returns the tool result with its link
// rewritten, plus the fixed link itself.
func (c *Client) Create(ctx context.Context, in *EventInput) (*mcp.ToolResult, string, error) {
	args, err := in.CreateArgs(c.calendarID, c.timezone)
	if err != nil {
		return nil, "", err
	}
	return c.write(ctx, ToolCreate, args)
}

// Update patches an event. existing may be nil when the event could
// not be pre-fetched; nothing is merged in that case.
func (c *Client) Update(ctx context.Context, eventID string, in *EventInput, existing *Event) (*mcp.ToolResult, string, error) {
	args, err := in.UpdateArgs(c.calendarID, eventID, c.timezone, existing)
	if err != nil {
		return nil, "", err
	}
	return c.write(ctx, ToolUpdate, args)
}

func (c *Client) write(ctx context.Context, tool string, args map[string]any) (*mcp.ToolResult, string, error) {
	res, err := c.tools.CallTool(ctx, tool, args)
	if err != nil {
		return nil, "", err
	}
	payload, link := rewriteLink(res.Payload, c.calendarID)
	out := *res
	out.Payload = json.RawMessage(payload)
	return &out, link, nil
}

// Delete removes an event.
func (c *Client) Delete(ctx context.Context, eventID string) (*mcp.ToolResult, error) {
	if eventID == "" {
		return nil, fmt.Errorf("delete: empty event id")
	}
	return c.tools.CallTool(ctx, ToolDelete, map[string]any{
		"calendar_id": c.calendarID,
		"event_id":    eventID,
	})
}
