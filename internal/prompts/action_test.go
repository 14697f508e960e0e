package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/nugget/lifeops/internal/action"
)

func TestActionSystemPrompt(t *testing.T) {
	now := time.Date(2025, 1, 3, 2, 30, 0, 0, time.UTC)
	result := ActionSystemPrompt(now, "America/Chicago", []Turn{
		{Role: "user", Content: "add a task for Aura"},
		{Role: "assistant", Content: `{"action":"createTask"}`},
	})

	for _, want := range []string{
		"Current date and time: 2025-01-03T02:30:00Z",
		"Today is: Thursday, January 2, 2025",
		`"timeZone": "America/Chicago"`,
		"RECENT CONVERSATION CONTEXT:\nUSER: add a task for Aura\nASSISTANT: {\"action\":\"createTask\"}",
		"MISSING_INFO",
		"P0 - Critical",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
}

func TestActionSystemPrompt_NamesEveryKind(t *testing.T) {
	result := ActionSystemPrompt(time.Now(), "", nil)
	for _, k := range action.Kinds() {
		if !strings.Contains(result, "- "+string(k)+":") {
			t.Errorf("prompt does not describe %s", k)
		}
	}
	if strings.Contains(result, "RECENT CONVERSATION CONTEXT") {
		t.Error("context block should be omitted without history")
	}
	if !strings.Contains(result, "User timezone: UTC") {
		t.Error("empty zone should default to UTC")
	}
}

func TestRepairPrompts(t *testing.T) {
	sys := RepairSystemPrompt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if !strings.Contains(sys, "MAINTAIN the original action intent") {
		t.Error("repair prompt should pin the action intent")
	}
	if !strings.Contains(sys, "2025-06-01T00:00:00Z") {
		t.Error("repair prompt should carry the current time")
	}

	if got, want := RepairUserMessage("new task", "{oops"), "new task\n\nPrevious attempt: {oops"; got != want {
		t.Errorf("RepairUserMessage = %q, want %q", got, want)
	}
}
