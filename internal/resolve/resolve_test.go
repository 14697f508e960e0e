package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nugget/lifeops/internal/calendar"
	"github.com/nugget/lifeops/internal/notion"
)

type fakePages struct {
	query    []notion.Page
	search   []notion.Page
	err      error
	searched []string
}

func (f *fakePages) QueryDatabase(_ context.Context, _ string, _ int) ([]notion.Page, error) {
	return f.query, f.err
}

func (f *fakePages) Search(_ context.Context, q string) ([]notion.Page, error) {
	f.searched = append(f.searched, q)
	return f.search, f.err
}

type fakeEvents struct {
	events  []calendar.Event
	err     error
	windows []calendar.Window
}

func (f *fakeEvents) List(_ context.Context, w calendar.Window) ([]calendar.Event, error) {
	f.windows = append(f.windows, w)
	return f.events, f.err
}

func page(id, db, title string) notion.Page {
	prop, _ := json.Marshal(map[string]any{
		"title": []map[string]any{{"plain_text": title}},
	})
	return notion.Page{
		Object:     "page",
		ID:         id,
		Parent:     notion.Parent{Type: "database_id", DatabaseID: db},
		Properties: map[string]json.RawMessage{notion.PropName: prop},
	}
}

var dbs = notion.Databases{Projects: "db-projects", Tasks: "db-tasks"}

func TestResolve_Project(t *testing.T) {
	pages := &fakePages{query: []notion.Page{
		page("other", "db-elsewhere", "Aura"),
		page("p-1", "db-projects", "Aura Life OS"),
	}}
	r := New(pages, nil, dbs, DefaultScoring(), nil)

	ref, ok := r.Resolve(context.Background(), Project, "Aura")
	if !ok {
		t.Fatal("expected project to resolve")
	}
	if diff := cmp.Diff(Reference{ID: "p-1", Title: "Aura Life OS", Score: 80}, ref); diff != "" {
		t.Errorf("reference mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_TaskSearchesByName(t *testing.T) {
	pages := &fakePages{search: []notion.Page{
		page("t-1", "db-tasks", "Write launch docs"),
	}}
	r := New(pages, nil, dbs, DefaultScoring(), nil)

	ref, ok := r.Resolve(context.Background(), Task, "launch docs")
	if !ok || ref.ID != "t-1" {
		t.Fatalf("Resolve = %+v, %v", ref, ok)
	}
	if diff := cmp.Diff([]string{"launch docs"}, pages.searched); diff != "" {
		t.Errorf("search queries mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_ListingFailureIsNotFound(t *testing.T) {
	pages := &fakePages{err: errors.New("boom")}
	r := New(pages, nil, dbs, DefaultScoring(), nil)

	if _, ok := r.Resolve(context.Background(), Project, "Aura"); ok {
		t.Error("listing failure should be not found")
	}
}

func TestResolve_Event(t *testing.T) {
	events := &fakeEvents{events: []calendar.Event{
		{ID: "ev-1", Summary: "Dentist appointment"},
		{ID: "ev-2", Summary: "Team standup"},
	}}
	r := New(&fakePages{}, events, dbs, DefaultScoring(), nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	ref, ok := r.Resolve(context.Background(), Event, "standup")
	if !ok || ref.ID != "ev-2" {
		t.Fatalf("Resolve = %+v, %v", ref, ok)
	}
	if diff := cmp.Diff([]calendar.Window{calendar.Upcoming(now)}, events.windows); diff != "" {
		t.Errorf("window mismatch (-want +got):\n%s", diff)
	}

	ref, ok = r.ResolveEvent(context.Background(), "dentist", calendar.Recent(now))
	if !ok || ref.ID != "ev-1" {
		t.Fatalf("ResolveEvent = %+v, %v", ref, ok)
	}
	if got := events.windows[1]; got.MaxResults != 100 {
		t.Errorf("MaxResults = %d, want 100", got.MaxResults)
	}
}

func TestResolve_EventWithoutCalendar(t *testing.T) {
	r := New(&fakePages{}, nil, dbs, DefaultScoring(), nil)
	if _, ok := r.Resolve(context.Background(), Event, "standup"); ok {
		t.Error("resolving without a calendar should be not found")
	}
}

func TestClassIDField(t *testing.T) {
	for class, want := range map[Class]string{Project: "projectId", Task: "taskId", Event: "eventId"} {
		if got := class.IDField(); got != want {
			t.Errorf("%v.IDField() = %q, want %q", class, got, want)
		}
	}
}
