package notion

import (
	"fmt"

	"github.com/nugget/lifeops/internal/action"
)

// Databases holds the database id for each record family.
type Databases struct {
	LifeDomains string
	Projects    string
	Tasks       string
	Content     string
	Journal     string
}

// Property names in the lifeops workspace.
const (
	PropName        = "Name"
	PropTitle       = "Title"
	PropLifeDomains = "Life Domains"
	PropFlagship    = "Flagship"
	PropStatus      = "Status"
	PropDue         = "Due"
	PropDoD         = "DoD"
	PropKPI         = "KPI"
	PropNotes       = "Notes"
	PropProject     = "Project"
	PropPriority    = "Priority"
	PropShippable   = "Shippable"
	PropJournal     = "Journal"
	PropType        = "Type"
	PropContent     = "Content"
	PropDate        = "Date"
	PropActionItems = "Action Items (Tasks)"
	PropTags        = "Tags"
)

// Record is a document-database record decoded from action params.
// Properties includes only fields that were supplied, so the same
// record serves both creates and partial updates.
type Record interface {
	// Target is the id of the page an update applies to.
	Target() string

	// TitleText is the display title, empty on updates that do not rename.
	TitleText() string

	// TitleProperty names the record's title property.
	TitleProperty() string

	// Database selects the record's database.
	Database(Databases) string

	Properties() Patch
}

var requirements = map[action.Kind][]action.Requirement{
	action.CreateProject: {action.Field("name")},
	action.CreateTask: {
		action.Field("name"),
		action.Field("status"),
		action.Field("priority"),
		action.Field("due"),
		action.OneOf("projectId", "projectName"),
	},
	action.LogNote:       {action.Field("title"), action.Field("type")},
	action.CreateContent: {action.Field("title")},
	action.UpdateTask:    {action.OneOf("taskId", "taskName")},
	action.UpdateProject: {action.Field("projectId")},
	action.UpdateContent: {action.Field("contentId")},
	action.UpdateJournal: {action.Field("journalId")},
}

// Requirements returns the hard-required parameters for a kind.
func Requirements(kind action.Kind) []action.Requirement {
	return requirements[kind]
}

// Decode validates params for kind and decodes them into a typed
// record. Absent or MISSING_INFO required fields produce an
// *action.ValidationError listing them.
func Decode(kind action.Kind, p action.Params) (Record, error) {
	reqs, ok := requirements[kind]
	if !ok {
		return nil, fmt.Errorf("%s is not a document-database action", kind)
	}
	if missing := p.Missing(reqs); len(missing) > 0 {
		return nil, &action.ValidationError{Kind: kind, Fields: missing}
	}

	switch kind {
	case action.CreateProject, action.UpdateProject:
		return decodeProject(p), nil
	case action.CreateTask, action.UpdateTask:
		return decodeTask(p), nil
	case action.LogNote, action.UpdateJournal:
		return decodeJournal(p), nil
	default:
		return decodeContent(p), nil
	}
}

// Build decodes params and returns the full property patch for kind.
func Build(kind action.Kind, p action.Params) (Patch, error) {
	rec, err := Decode(kind, p)
	if err != nil {
		return nil, err
	}
	return rec.Properties(), nil
}

// BuildUpdate is Build restricted to update kinds. The patch holds only
// the properties present in params.
func BuildUpdate(kind action.Kind, p action.Params) (Patch, error) {
	if kind.Create() || kind.Calendar() {
		return nil, fmt.Errorf("%s is not an update action", kind)
	}
	return Build(kind, p)
}

func optionalBool(p action.Params, key string) *bool {
	if b, ok := p.Bool(key); ok {
		return &b
	}
	return nil
}

// Project is a row of the projects database.
type Project struct {
	ID           string // projectId, update target
	Name         string
	LifeDomainID string
	Flagship     *bool
	Status       string
	Due          string
	DoD          string
	KPI          string
	Notes        string
}

func decodeProject(p action.Params) *Project {
	return &Project{
		ID:           p.String("projectId"),
		Name:         p.String("name"),
		LifeDomainID: p.String("lifeDomainId"),
		Flagship:     optionalBool(p, "flagship"),
		Status:       p.String("status"),
		Due:          p.String("due"),
		DoD:          p.String("dod"),
		KPI:          p.String("kpi"),
		Notes:        p.String("notes"),
	}
}

func (r *Project) Target() string              { return r.ID }
func (r *Project) TitleText() string           { return r.Name }
func (r *Project) TitleProperty() string       { return PropName }
func (r *Project) Database(d Databases) string { return d.Projects }

func (r *Project) Properties() Patch {
	patch := Patch{}
	setText(patch, PropName, r.Name, Title)
	setRelation(patch, PropLifeDomains, r.LifeDomainID)
	if r.Flagship != nil {
		patch[PropFlagship] = Checkbox(*r.Flagship)
	}
	setText(patch, PropStatus, r.Status, Select)
	setText(patch, PropDue, r.Due, Date)
	setText(patch, PropDoD, r.DoD, RichText)
	setText(patch, PropKPI, r.KPI, RichText)
	setText(patch, PropNotes, r.Notes, RichText)
	return patch
}

// Task is a row of the tasks database.
type Task struct {
	ID          string // taskId, update target
	LookupName  string // taskName, resolved to ID on update
	Name        string
	ProjectID   string
	ProjectName string // resolved to ProjectID before building
	Status      string
	Priority    string
	Due         string
	Shippable   *bool
	Notes       string
	JournalID   string
}

func decodeTask(p action.Params) *Task {
	return &Task{
		ID:          p.String("taskId"),
		LookupName:  p.String("taskName"),
		Name:        p.String("name"),
		ProjectID:   p.String("projectId"),
		ProjectName: p.String("projectName"),
		Status:      p.String("status"),
		Priority:    p.String("priority"),
		Due:         p.String("due"),
		Shippable:   optionalBool(p, "shippable"),
		Notes:       p.String("notes"),
		JournalID:   p.String("journalId"),
	}
}

func (r *Task) Target() string              { return r.ID }
func (r *Task) TitleText() string           { return r.Name }
func (r *Task) TitleProperty() string       { return PropName }
func (r *Task) Database(d Databases) string { return d.Tasks }

func (r *Task) Properties() Patch {
	patch := Patch{}
	setText(patch, PropName, r.Name, Title)
	setRelation(patch, PropProject, r.ProjectID)
	setText(patch, PropStatus, r.Status, Status)
	setText(patch, PropPriority, r.Priority, Select)
	setText(patch, PropDue, r.Due, Date)
	if r.Shippable != nil {
		patch[PropShippable] = Checkbox(*r.Shippable)
	}
	setText(patch, PropNotes, r.Notes, RichText)
	setRelation(patch, PropJournal, r.JournalID)
	return patch
}

// Journal is a row of the journal database.
type Journal struct {
	ID            string // journalId, update target
	Title         string
	Type          string
	Content       string // also appended to the page body on create
	Date          string
	ProjectID     string
	ProjectName   string
	LifeDomainID  string
	ActionItemIDs []string
	TaskNames     []string // resolved and appended to ActionItemIDs
}

func decodeJournal(p action.Params) *Journal {
	return &Journal{
		ID:            p.String("journalId"),
		Title:         p.String("title"),
		Type:          p.String("type"),
		Content:       p.String("content"),
		Date:          p.String("date"),
		ProjectID:     p.String("projectId"),
		ProjectName:   p.String("projectName"),
		LifeDomainID:  p.String("lifeDomainId"),
		ActionItemIDs: p.Strings("actionItemIds"),
		TaskNames:     p.Strings("taskNames"),
	}
}

func (r *Journal) Target() string              { return r.ID }
func (r *Journal) TitleText() string           { return r.Title }
func (r *Journal) TitleProperty() string       { return PropTitle }
func (r *Journal) Database(d Databases) string { return d.Journal }

func (r *Journal) Properties() Patch {
	patch := Patch{}
	setText(patch, PropTitle, r.Title, Title)
	setText(patch, PropType, r.Type, Select)
	setText(patch, PropContent, r.Content, RichText)
	setText(patch, PropDate, r.Date, Date)
	setRelation(patch, PropProject, r.ProjectID)
	setRelation(patch, PropLifeDomains, r.LifeDomainID)
	if len(r.ActionItemIDs) > 0 {
		patch[PropActionItems] = Relation(r.ActionItemIDs...)
	}
	return patch
}

// Content is a row of the content database.
type Content struct {
	ID           string // contentId, update target
	Title        string
	Type         string
	Tags         []string
	ProjectID    string
	LifeDomainID string
	Date         string
	Body         string
}

func decodeContent(p action.Params) *Content {
	body := p.String("body")
	if body == "" {
		body = p.String("content")
	}
	return &Content{
		ID:           p.String("contentId"),
		Title:        p.String("title"),
		Type:         p.String("type"),
		Tags:         p.Strings("tags"),
		ProjectID:    p.String("projectId"),
		LifeDomainID: p.String("lifeDomainId"),
		Date:         p.String("date"),
		Body:         body,
	}
}

func (r *Content) Target() string              { return r.ID }
func (r *Content) TitleText() string           { return r.Title }
func (r *Content) TitleProperty() string       { return PropTitle }
func (r *Content) Database(d Databases) string { return d.Content }

func (r *Content) Properties() Patch {
	patch := Patch{}
	setText(patch, PropTitle, r.Title, Title)
	setText(patch, PropType, r.Type, Select)
	if len(r.Tags) > 0 {
		patch[PropTags] = MultiSelect(r.Tags...)
	}
	setRelation(patch, PropProject, r.ProjectID)
	setRelation(patch, PropLifeDomains, r.LifeDomainID)
	setText(patch, PropDate, r.Date, Date)
	setText(patch, PropContent, r.Body, RichText)
	return patch
}

func setText(patch Patch, prop, s string, mk func(string) Value) {
	if s != "" {
		patch[prop] = mk(s)
	}
}

func setRelation(patch Patch, prop, id string) {
	if id != "" {
		patch[prop] = Relation(id)
	}
}
