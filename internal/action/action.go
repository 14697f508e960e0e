// Package action turns raw language-model output into a typed [Action].
//
// The model is asked to reply with {"action": name, "params": {...}}.
// [Parse] accepts that object alone or embedded in surrounding prose,
// maps every accepted spelling of the action name onto one canonical
// [Kind], and passes params through untouched. Nothing outside this
// package ever sees an unnormalized action name.
package action

import "sort"

// Kind is a canonical action name.
type Kind string

// The closed set of actions the executor knows how to run.
const (
	CreateProject       Kind = "createProject"
	CreateTask          Kind = "createTask"
	LogNote             Kind = "logNote"
	CreateContent       Kind = "createContent"
	UpdateTask          Kind = "updateTask"
	UpdateProject       Kind = "updateProject"
	UpdateContent       Kind = "updateContent"
	UpdateJournal       Kind = "updateJournal"
	CreateCalendarEvent Kind = "createCalendarEvent"
	UpdateCalendarEvent Kind = "updateCalendarEvent"
	DeleteCalendarEvent Kind = "deleteCalendarEvent"
	ListCalendarEvents  Kind = "listCalendarEvents"
)

// Kinds lists every canonical kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		CreateProject, CreateTask, LogNote, CreateContent,
		UpdateTask, UpdateProject, UpdateContent, UpdateJournal,
		CreateCalendarEvent, UpdateCalendarEvent, DeleteCalendarEvent, ListCalendarEvents,
	}
}

// aliases maps every accepted spelling to its canonical kind. Remote
// tool names occasionally leak into model output and are accepted too.
var aliases = map[string]Kind{
	"create_project":        CreateProject,
	"create_task":           CreateTask,
	"log_note":              LogNote,
	"create_content":        CreateContent,
	"update_task":           UpdateTask,
	"update_project":        UpdateProject,
	"update_content":        UpdateContent,
	"update_journal":        UpdateJournal,
	"create_calendar_event": CreateCalendarEvent,
	"schedule_event":        CreateCalendarEvent,
	"update_calendar_event": UpdateCalendarEvent,
	"delete_calendar_event": DeleteCalendarEvent,
	"list_calendar_events":  ListCalendarEvents,

	"NOTION_CREATE_NOTION_PAGE":   CreateProject,
	"NOTION_UPDATE_PAGE":          UpdateTask,
	"GOOGLECALENDAR_CREATE_EVENT": CreateCalendarEvent,
	"GOOGLECALENDAR_UPDATE_EVENT": UpdateCalendarEvent,
	"GOOGLECALENDAR_DELETE_EVENT": DeleteCalendarEvent,
	"GOOGLECALENDAR_EVENTS_LIST":  ListCalendarEvents,
}

func init() {
	for _, k := range Kinds() {
		aliases[string(k)] = k
	}
}

// Normalize maps an accepted spelling to its canonical kind. Matching is
// exact: the model is prompted with these names verbatim.
func Normalize(name string) (Kind, bool) {
	k, ok := aliases[name]
	return k, ok
}

// Aliases returns every accepted spelling, sorted.
func Aliases() []string {
	out := make([]string, 0, len(aliases))
	for name := range aliases {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Calendar reports whether the kind targets the calendar rather than
// the document database.
func (k Kind) Calendar() bool {
	switch k {
	case CreateCalendarEvent, UpdateCalendarEvent, DeleteCalendarEvent, ListCalendarEvents:
		return true
	}
	return false
}

// Create reports whether the kind creates a new record.
func (k Kind) Create() bool {
	switch k {
	case CreateProject, CreateTask, LogNote, CreateContent, CreateCalendarEvent:
		return true
	}
	return false
}

// Noun is the user-facing name of the record the kind acts on.
func (k Kind) Noun() string {
	switch k {
	case CreateProject, UpdateProject:
		return "project"
	case CreateTask, UpdateTask:
		return "task"
	case LogNote, UpdateJournal:
		return "journal entry"
	case CreateContent, UpdateContent:
		return "content item"
	case CreateCalendarEvent, UpdateCalendarEvent, DeleteCalendarEvent:
		return "calendar event"
	case ListCalendarEvents:
		return "calendar listing"
	}
	return "item"
}

// Verb is the user-facing verb for the kind.
func (k Kind) Verb() string {
	switch k {
	case UpdateTask, UpdateProject, UpdateContent, UpdateJournal, UpdateCalendarEvent:
		return "update"
	case DeleteCalendarEvent:
		return "delete"
	case ListCalendarEvents:
		return "run"
	}
	return "create"
}

// Action is a parsed, canonicalized instruction.
type Action struct {
	Kind   Kind   `json:"action"`
	Params Params `json:"params"`
}
