package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"

	"github.com/nugget/lifeops/internal/mcp"
)

type call struct {
	Tool string
	Args map[string]any
}

type fakeInvoker struct {
	payloads map[string]string
	calls    []call
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{payloads: make(map[string]string)}
}

func (f *fakeInvoker) CallTool(_ context.Context, name string, args map[string]any) (*mcp.ToolResult, error) {
	f.calls = append(f.calls, call{Tool: name, Args: args})
	payload, ok := f.payloads[name]
	if !ok {
		return nil, fmt.Errorf("unexpected tool %s", name)
	}
	return &mcp.ToolResult{Tool: name, Payload: json.RawMessage(payload)}, nil
}

const listPayload = `{"data":{"items":[
  {"id":"ev-1","summary":"Team standup","description":"daily",
   "start":{"dateTime":"2025-01-02T09:00:00Z"},"end":{"dateTime":"2025-01-02T09:15:00Z"},
   "attendees":[{"email":"a@example.com"},{"displayName":"no email"}],"location":"Zoom"},
  {"id":"ev-2","summary":"Holiday","start":{"date":"2025-01-03"},"end":{"date":"2025-01-04"}}
]},"successful":true}`

func TestEventsFrom(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"data.items", listPayload, 2},
		{"items", `{"items":[{"id":"x"}]}`, 1},
		{"bare array", `[{"id":"x"},{"id":"y"}]`, 2},
		{"empty", `{"data":{}}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(eventsFrom([]byte(tt.payload))); got != tt.want {
				t.Errorf("len(events) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEventFrom(t *testing.T) {
	events := eventsFrom([]byte(listPayload))
	want := []Event{
		{
			ID:          "ev-1",
			Summary:     "Team standup",
			Description: "daily",
			Location:    "Zoom",
			Start:       "2025-01-02T09:00:00Z",
			End:         "2025-01-02T09:15:00Z",
			Attendees:   []string{"a@example.com"},
		},
		{ID: "ev-2", Summary: "Holiday", Start: "2025-01-03", End: "2025-01-04"},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestClientList(t *testing.T) {
	inv := newFakeInvoker()
	inv.payloads[ToolList] = listPayload
	c := NewClient(inv, "primary", "", nil)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	if _, err := c.List(context.Background(), Recent(now)); err != nil {
		t.Fatalf("List: %v", err)
	}
	want := map[string]any{
		"calendarId": "primary",
		"timeMin":    "2024-12-25T12:00:00Z",
		"timeMax":    "2025-01-31T12:00:00Z",
		"maxResults": 100,
	}
	if diff := cmp.Diff(want, inv.calls[0].Args); diff != "" {
		t.Errorf("list args mismatch (-want +got):\n%s", diff)
	}
}

func TestClientListInput_Defaults(t *testing.T) {
	inv := newFakeInvoker()
	inv.payloads[ToolList] = listPayload
	c := NewClient(inv, "primary", "", nil)

	events, _, err := c.ListInput(context.Background(), &EventInput{TimeMin: "2025-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("ListInput: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("len(events) = %d, want 2", len(events))
	}
	want := map[string]any{
		"calendarId": "primary",
		"timeMin":    "2025-01-01T00:00:00Z",
		"maxResults": 10,
	}
	if diff := cmp.Diff(want, inv.calls[0].Args); diff != "" {
		t.Errorf("list args mismatch (-want +got):\n%s", diff)
	}
}

func TestClientFind(t *testing.T) {
	inv := newFakeInvoker()
	inv.payloads[ToolList] = listPayload
	c := NewClient(inv, "primary", "", nil)
	ctx := context.Background()
	w := Recent(time.Now())

	ev, err := c.Find(ctx, "ev-2", w)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if ev == nil || ev.Summary != "Holiday" {
		t.Errorf("Find = %+v, want Holiday", ev)
	}

	ev, err = c.Find(ctx, "ev-404", w)
	if err != nil || ev != nil {
		t.Errorf("Find(missing) = %+v, %v; want nil, nil", ev, err)
	}
}

func TestClientCreate_RewritesLink(t *testing.T) {
	inv := newFakeInvoker()
	inv.payloads[ToolCreate] = `{"data":{"response_data":{"id":"ev-7","htmlLink":"https://www.google.com/calendar/event?eid=abc123&ctz=UTC"}}}`
	c := NewClient(inv, "primary", "America/Chicago", nil)

	res, link, err := c.Create(context.Background(), &EventInput{
		Title: "Planning",
		Start: "2025-01-01T09:00:00",
		End:   "2025-01-01T10:00:00",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := editURL + "abc123"
	if link != want {
		t.Errorf("link = %q, want %q", link, want)
	}
	if got := gjson.GetBytes(res.Payload, "data.response_data.fixedLink").String(); got != want {
		t.Errorf("fixedLink = %q, want %q", got, want)
	}
	if got := gjson.GetBytes(res.Payload, "data.response_data.htmlLink").String(); got != want {
		t.Errorf("htmlLink = %q, want %q", got, want)
	}
	if got := inv.calls[0].Args["timezone"]; got != "America/Chicago" {
		t.Errorf("timezone = %v, want configured zone", got)
	}
}

func TestClientUpdateAndDelete(t *testing.T) {
	inv := newFakeInvoker()
	inv.payloads[ToolUpdate] = `{"data":{"response_data":{"id":"ev-1"}}}`
	inv.payloads[ToolDelete] = `{"successful":true}`
	c := NewClient(inv, "primary", "", nil)
	ctx := context.Background()

	_, link, err := c.Update(ctx, "ev-1", &EventInput{Title: "Renamed"}, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if link != "" {
		t.Errorf("link = %q, want empty without htmlLink", link)
	}
	if inv.calls[0].Args["summary"] != "Renamed" {
		t.Errorf("summary = %v", inv.calls[0].Args["summary"])
	}

	if _, err := c.Delete(ctx, "ev-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := map[string]any{"calendar_id": "primary", "event_id": "ev-1"}
	if diff := cmp.Diff(want, inv.calls[1].Args); diff != "" {
		t.Errorf("delete args mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.Delete(ctx, ""); err == nil {
		t.Error("Delete(\"\") should fail")
	}
}

func TestFixLink(t *testing.T) {
	tests := []struct {
		name, link, id, cal, want string
	}{
		{"eid param", "https://www.google.com/calendar/event?eid=XYZ", "ev", "primary", editURL + "XYZ"},
		{"eid mid query", "https://x/event?foo=1&eid=ABC&ctz=UTC", "", "", editURL + "ABC"},
		// base64("ev1 primary") is "ZXYxIHByaW1hcnk=".
		{"rebuilt from ids", "https://x/event", "ev1", "primary", editURL + "ZXYxIHByaW1hcnk"},
		{"unchanged", "https://x/event", "", "primary", "https://x/event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FixLink(tt.link, tt.id, tt.cal); got != tt.want {
				t.Errorf("FixLink = %q, want %q", got, tt.want)
			}
		})
	}
}
