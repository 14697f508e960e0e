package executor

import (
	"context"
	"errors"

	"github.com/nugget/lifeops/internal/action"
	"github.com/nugget/lifeops/internal/calendar"
	"github.com/nugget/lifeops/internal/mcp"
	"github.com/nugget/lifeops/internal/resolve"
)

func (e *Executor) calendarAction(ctx context.Context, act action.Action) Result {
	kind := act.Kind
	in, err := calendar.Decode(kind, act.Params)
	if err != nil {
		return invalid(kind, err)
	}
	if e.cal == nil {
		return &Failure{Kind: kind, Stage: StageInvoke, Err: ErrNoCalendar}
	}

	switch kind {
	case action.CreateCalendarEvent:
		return e.createEvent(ctx, in)
	case action.UpdateCalendarEvent:
		return e.updateEvent(ctx, in)
	case action.DeleteCalendarEvent:
		return e.deleteEvent(ctx, in)
	default:
		return e.listEvents(ctx, in)
	}
}

// invokeFailure classifies a calendar call error. Bad intervals are
// caught before any call is made.
func invokeFailure(kind action.Kind, err error) *Failure {
	if errors.Is(err, calendar.ErrInvalidInterval) {
		return &Failure{Kind: kind, Stage: StageValidate, Err: err}
	}
	return &Failure{Kind: kind, Stage: StageInvoke, Err: err}
}

// eventID returns the input's explicit id or resolves its name in the
// recent window.
func (e *Executor) eventID(ctx context.Context, kind action.Kind, in *calendar.EventInput) (string, []Resolution, *Failure) {
	if in.ID != "" {
		return in.ID, nil, nil
	}
	w := calendar.Recent(e.now())
	ref, ok := e.lookup(kind, resolve.Event, in.Name, func() (resolve.Reference, bool) {
		return e.resolver.ResolveEvent(ctx, in.Name, w)
	})
	if !ok {
		return "", nil, &Failure{
			Kind:  kind,
			Stage: StageResolve,
			Field: resolve.Event.IDField(),
			Query: in.Name,
			Err:   &NotFoundError{Class: resolve.Event, Name: in.Name},
		}
	}
	return ref.ID, []Resolution{{Field: resolve.Event.IDField(), Name: in.Name, Ref: ref}}, nil
}

func (e *Executor) createEvent(ctx context.Context, in *calendar.EventInput) Result {
	kind := action.CreateCalendarEvent
	var (
		res  *mcp.ToolResult
		link string
	)
	createCtx := mcp.WithIdempotencyKey(ctx, e.newKey())
	err := e.track(kind, StageInvoke, calendar.ToolCreate, func() error {
		var err error
		res, link, err = e.cal.Create(createCtx, in)
		return err
	})
	if err != nil {
		return invokeFailure(kind, err)
	}
	return &Success{
		Kind:     kind,
		RecordID: res.First(eventIDPaths...).String(),
		Outputs:  []Output{{Stage: StageInvoke, Tool: calendar.ToolCreate, Result: res}},
		Link:     link,
	}
}

func (e *Executor) updateEvent(ctx context.Context, in *calendar.EventInput) Result {
	kind := action.UpdateCalendarEvent
	id, resolved, f := e.eventID(ctx, kind, in)
	if f != nil {
		return f
	}

	existing, err := e.cal.Find(ctx, id, calendar.Recent(e.now()))
	switch {
	case err != nil:
		e.logger.Warn("could not pre-fetch event, updating without merge", "event_id", id, "error", err)
	case existing == nil:
		e.logger.Debug("event not in recent window, updating without merge", "event_id", id)
	}

	var (
		res  *mcp.ToolResult
		link string
	)
	err = e.track(kind, StageInvoke, calendar.ToolUpdate, func() error {
		var err error
		res, link, err = e.cal.Update(ctx, id, in, existing)
		return err
	})
	if err != nil {
		return invokeFailure(kind, err)
	}
	return &Success{
		Kind:     kind,
		RecordID: id,
		Outputs:  []Output{{Stage: StageInvoke, Tool: calendar.ToolUpdate, Result: res}},
		Resolved: resolved,
		Link:     link,
	}
}

func (e *Executor) deleteEvent(ctx context.Context, in *calendar.EventInput) Result {
	kind := action.DeleteCalendarEvent
	id, resolved, f := e.eventID(ctx, kind, in)
	if f != nil {
		return f
	}

	var res *mcp.ToolResult
	err := e.track(kind, StageInvoke, calendar.ToolDelete, func() error {
		var err error
		res, err = e.cal.Delete(ctx, id)
		return err
	})
	if err != nil {
		return invokeFailure(kind, err)
	}
	return &Success{
		Kind:     kind,
		RecordID: id,
		Outputs:  []Output{{Stage: StageInvoke, Tool: calendar.ToolDelete, Result: res}},
		Resolved: resolved,
	}
}

func (e *Executor) listEvents(ctx context.Context, in *calendar.EventInput) Result {
	kind := action.ListCalendarEvents
	var (
		evs []calendar.Event
		res *mcp.ToolResult
	)
	err := e.track(kind, StageInvoke, calendar.ToolList, func() error {
		var err error
		evs, res, err = e.cal.ListInput(ctx, in)
		return err
	})
	if err != nil {
		return invokeFailure(kind, err)
	}
	return &Success{
		Kind:    kind,
		Outputs: []Output{{Stage: StageInvoke, Tool: calendar.ToolList, Result: res}},
		Events:  evs,
	}
}
