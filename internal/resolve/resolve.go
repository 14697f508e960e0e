package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/lifeops/internal/calendar"
	"github.com/nugget/lifeops/internal/notion"
)

// Class is the kind of record a name refers to.
type Class int

const (
	Project Class = iota
	Task
	Event
)

func (c Class) String() string {
	switch c {
	case Project:
		return "project"
	case Task:
		return "task"
	case Event:
		return "calendar event"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// IDField is the parameter the user supplies when the name cannot be
// resolved.
func (c Class) IDField() string {
	switch c {
	case Project:
		return "projectId"
	case Task:
		return "taskId"
	case Event:
		return "eventId"
	}
	return ""
}

// Pages lists document-database pages. *notion.Client satisfies it.
type Pages interface {
	QueryDatabase(ctx context.Context, databaseID string, pageSize int) ([]notion.Page, error)
	Search(ctx context.Context, query string) ([]notion.Page, error)
}

// Events lists calendar events. *calendar.Client satisfies it.
type Events interface {
	List(ctx context.Context, w calendar.Window) ([]calendar.Event, error)
}

// Resolver finds record ids by name. It keeps nothing between calls.
type Resolver struct {
	pages   Pages
	events  Events
	dbs     notion.Databases
	scoring Scoring
	logger  *slog.Logger

	now func() time.Time
}

// New creates a resolver.
func New(pages Pages, events Events, dbs notion.Databases, scoring Scoring, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		pages:   pages,
		events:  events,
		dbs:     dbs,
		scoring: scoring,
		logger:  logger.With("component", "resolve"),
		now:     time.Now,
	}
}

// Scoring returns the resolver's scoring policy.
func (r *Resolver) Scoring() Scoring { return r.scoring }

// Resolve finds the record of the given class best matching name.
// Events are searched in the upcoming window. A failed listing is
// logged and reported as not found.
func (r *Resolver) Resolve(ctx context.Context, class Class, name string) (Reference, bool) {
	var (
		candidates []Candidate
		err        error
	)
	switch class {
	case Project:
		candidates, err = r.projects(ctx)
	case Task:
		candidates, err = r.tasks(ctx, name)
	case Event:
		candidates, err = r.eventCandidates(ctx, calendar.Upcoming(r.now()))
	default:
		err = fmt.Errorf("unknown class %v", class)
	}
	return r.pick(class, name, candidates, err)
}

// ResolveEvent finds an event by name within an explicit window.
func (r *Resolver) ResolveEvent(ctx context.Context, name string, w calendar.Window) (Reference, bool) {
	candidates, err := r.eventCandidates(ctx, w)
	return r.pick(Event, name, candidates, err)
}

func (r *Resolver) pick(class Class, name string, candidates []Candidate, err error) (Reference, bool) {
	log := r.logger.With("class", class.String(), "name", name)
	if err != nil {
		log.Warn("candidate listing failed", "error", err)
		return Reference{}, false
	}
	ref, ok := r.scoring.Best(name, candidates)
	if !ok {
		log.Info("no candidate cleared threshold", "candidates", len(candidates), "threshold", r.scoring.Threshold)
		return Reference{}, false
	}
	log.Debug("resolved", "id", ref.ID, "title", ref.Title, "score", ref.Score)
	return ref, true
}

func (r *Resolver) projects(ctx context.Context) ([]Candidate, error) {
	pages, err := r.pages.QueryDatabase(ctx, r.dbs.Projects, 0)
	if err != nil {
		return nil, err
	}
	return pageCandidates(pages, r.dbs.Projects), nil
}

func (r *Resolver) tasks(ctx context.Context, name string) ([]Candidate, error) {
	pages, err := r.pages.Search(ctx, name)
	if err != nil {
		return nil, err
	}
	return pageCandidates(pages, r.dbs.Tasks), nil
}

// pageCandidates keeps the rows of one database, titled by Name.
func pageCandidates(pages []notion.Page, databaseID string) []Candidate {
	var out []Candidate
	for _, p := range pages {
		if !p.InDatabase(databaseID) {
			continue
		}
		if title := p.Title(notion.PropName); title != "" {
			out = append(out, Candidate{ID: p.ID, Title: title})
		}
	}
	return out
}

func (r *Resolver) eventCandidates(ctx context.Context, w calendar.Window) ([]Candidate, error) {
	if r.events == nil {
		return nil, fmt.Errorf("no calendar configured")
	}
	events, err := r.events.List(ctx, w)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(events))
	for _, ev := range events {
		if ev.Summary != "" {
			out = append(out, Candidate{ID: ev.ID, Title: ev.Summary})
		}
	}
	return out, nil
}
