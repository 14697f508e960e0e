package notion

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nugget/lifeops/internal/action"
)

func fullTaskParams() action.Params {
	return action.Params{
		"name":      "Ship v2",
		"projectId": "proj-1",
		"status":    "Next",
		"priority":  "P1 - High",
		"due":       "2025-03-01",
	}
}

func TestDecode_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		kind   action.Kind
		params action.Params
		want   []string
	}{
		{
			name: "task without priority",
			kind: action.CreateTask,
			params: func() action.Params {
				p := fullTaskParams()
				delete(p, "priority")
				return p
			}(),
			want: []string{"priority"},
		},
		{
			name: "sentinel equals absent",
			kind: action.CreateTask,
			params: func() action.Params {
				p := fullTaskParams()
				p["priority"] = action.MissingInfo
				return p
			}(),
			want: []string{"priority"},
		},
		{
			name:   "task without project reference",
			kind:   action.CreateTask,
			params: action.Params{"name": "x", "status": "Next", "priority": "P2 - Medium", "due": "2025-01-01"},
			want:   []string{"projectId"},
		},
		{
			name:   "project",
			kind:   action.CreateProject,
			params: action.Params{},
			want:   []string{"name"},
		},
		{
			name:   "journal",
			kind:   action.LogNote,
			params: action.Params{"title": "Standup"},
			want:   []string{"type"},
		},
		{
			name:   "content",
			kind:   action.CreateContent,
			params: action.Params{"title": "   "},
			want:   []string{"title"},
		},
		{
			name:   "update task needs a reference",
			kind:   action.UpdateTask,
			params: action.Params{"status": "Done", "taskName": action.MissingInfo},
			want:   []string{"taskName"},
		},
		{
			name:   "stray sentinel reported after requirements",
			kind:   action.CreateProject,
			params: action.Params{"kpi": action.MissingInfo},
			want:   []string{"name", "kpi"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.kind, tt.params)
			var ve *action.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Decode error = %v, want *action.ValidationError", err)
			}
			if diff := cmp.Diff(tt.want, ve.Fields); diff != "" {
				t.Errorf("Fields mismatch (-want +got):\n%s", diff)
			}
			if ve.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", ve.Kind, tt.kind)
			}
		})
	}
}

func TestDecode_CalendarKindRejected(t *testing.T) {
	if _, err := Decode(action.CreateCalendarEvent, action.Params{}); err == nil {
		t.Fatal("expected error for calendar kind")
	}
}

func TestBuild_Task(t *testing.T) {
	p := fullTaskParams()
	p["shippable"] = "Yes"
	p["notes"] = "cut release branch"

	got, err := Build(action.CreateTask, p)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := Patch{
		PropName:      Title("Ship v2"),
		PropProject:   Relation("proj-1"),
		PropStatus:    Status("Next"),
		PropPriority:  Select("P1 - High"),
		PropDue:       Date("2025-03-01"),
		PropShippable: Checkbox(true),
		PropNotes:     RichText("cut release branch"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patch mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_ProjectFlagship(t *testing.T) {
	tests := []struct {
		value any
		want  *Value
	}{
		{true, &Value{Type: TypeCheckbox, Checked: true}},
		{"no", &Value{Type: TypeCheckbox, Checked: false}},
		{"NO", &Value{Type: TypeCheckbox, Checked: false}},
		{"maybe", nil},
	}
	for _, tt := range tests {
		got, err := Build(action.CreateProject, action.Params{"name": "Aura", "flagship": tt.value})
		if err != nil {
			t.Fatalf("Build(%v): %v", tt.value, err)
		}
		v, ok := got[PropFlagship]
		switch {
		case tt.want == nil && ok:
			t.Errorf("flagship %v: unexpected Flagship property %+v", tt.value, v)
		case tt.want != nil && !ok:
			t.Errorf("flagship %v: Flagship property missing", tt.value)
		case tt.want != nil && v.Checked != tt.want.Checked:
			t.Errorf("flagship %v: Checked = %v, want %v", tt.value, v.Checked, tt.want.Checked)
		}
	}
}

func TestBuildUpdate_OnlyPresentFields(t *testing.T) {
	got, err := BuildUpdate(action.UpdateTask, action.Params{"taskId": "t-1", "name": "x"})
	if err != nil {
		t.Fatalf("BuildUpdate: %v", err)
	}
	if diff := cmp.Diff([]string{PropName}, got.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildUpdate_RejectsCreate(t *testing.T) {
	if _, err := BuildUpdate(action.CreateTask, fullTaskParams()); err == nil {
		t.Fatal("expected error for create kind")
	}
}

func TestDecode_Journal(t *testing.T) {
	rec, err := Decode(action.LogNote, action.Params{
		"title":         "Weekly review",
		"type":          "Reflection",
		"content":       "## Wins\n\nShipped.",
		"projectName":   "Aura",
		"actionItemIds": []any{"t-1", action.MissingInfo},
		"taskNames":     []any{"Write docs"},
	})
	if err == nil {
		t.Fatal("expected sentinel inside actionItemIds to be reported")
	}
	var ve *action.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *action.ValidationError", err)
	}
	if diff := cmp.Diff([]string{"actionItemIds"}, ve.Fields); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
	if rec != nil {
		t.Errorf("record = %+v, want nil", rec)
	}

	rec, err = Decode(action.LogNote, action.Params{
		"title":       "Weekly review",
		"type":        "Reflection",
		"content":     "## Wins\n\nShipped.",
		"projectName": "Aura",
		"taskNames":   []any{"Write docs"},
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	j, ok := rec.(*Journal)
	if !ok {
		t.Fatalf("record type = %T, want *Journal", rec)
	}
	if j.ProjectName != "Aura" || len(j.TaskNames) != 1 {
		t.Errorf("journal references = %q %v", j.ProjectName, j.TaskNames)
	}
	if j.TitleProperty() != PropTitle {
		t.Errorf("TitleProperty = %q, want %q", j.TitleProperty(), PropTitle)
	}
	props := j.Properties()
	if _, ok := props[PropProject]; ok {
		t.Error("unresolved project name must not produce a relation")
	}
	if props[PropContent].Text != "## Wins\n\nShipped." {
		t.Errorf("Content = %q", props[PropContent].Text)
	}
}

func TestDecode_ContentBodyFallback(t *testing.T) {
	rec, err := Decode(action.CreateContent, action.Params{
		"title":   "Launch post",
		"content": "draft",
		"tags":    []any{"launch", "blog"},
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	props := rec.Properties()
	if props[PropContent].Text != "draft" {
		t.Errorf("Content = %q, want %q", props[PropContent].Text, "draft")
	}
	if diff := cmp.Diff([]string{"launch", "blog"}, props[PropTags].Names); diff != "" {
		t.Errorf("Tags mismatch (-want +got):\n%s", diff)
	}
	if got := rec.Database(Databases{Content: "db-content"}); got != "db-content" {
		t.Errorf("Database = %q", got)
	}
}
