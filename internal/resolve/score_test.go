package resolve

import (
	"testing"
)

func TestScore(t *testing.T) {
	s := DefaultScoring()
	tests := []struct {
		name         string
		query, title string
		want         float64
	}{
		{"exact", "Aura", "Aura", 100},
		{"exact ignores case and space", "  aura life os ", "Aura Life OS", 100},
		{"title contains query", "Aura", "Aura Life OS", 80},
		{"query contains title", "the aura project", "Aura", 70},
		{"all words overlap", "onboarding docs", "Docs Onboarding", 60},
		{"partial overlap", "the onboarding doc", "Onboarding Documentation Project Notes", 30},
		{"paraphrase by substring", "onboarding doc", "Onboarding Documentation Project", 80},
		{"word substring counts", "onboard documentation", "Onboarding Documentation", 60},
		{"unrelated", "groceries", "Aura Life OS", 0},
		{"empty query", "", "Aura", 0},
		{"empty title", "Aura", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.query, tt.title); got != tt.want {
				t.Errorf("Score(%q, %q) = %v, want %v", tt.query, tt.title, got, tt.want)
			}
		})
	}
}

func TestScore_QueryWordCountedOnce(t *testing.T) {
	if got := DefaultScoring().Score("plan", "plan planning"); got != 80 {
		t.Fatalf("substring tier should apply first, got %v", got)
	}
	// "plan" matches both title words but counts once: 1/2*60.
	if got := DefaultScoring().Score("plan x", "planning plans"); got != 30 {
		t.Errorf("Score = %v, want 30", got)
	}
}

func TestBest(t *testing.T) {
	s := DefaultScoring()
	candidates := []Candidate{
		{ID: "p-1", Title: "Aura Life OS"},
		{ID: "p-2", Title: "Aura"},
		{ID: "p-3", Title: "Garden"},
	}

	ref, ok := s.Best("aura", candidates)
	if !ok || ref.ID != "p-2" || ref.Score != 100 {
		t.Errorf("Best = %+v, %v; want exact match p-2", ref, ok)
	}

	ref, ok = s.Best("life os", candidates)
	if !ok || ref.ID != "p-1" || ref.Score != 80 {
		t.Errorf("Best = %+v, %v; want p-1 at 80", ref, ok)
	}
}

func TestBest_TiesKeepFirst(t *testing.T) {
	ref, ok := DefaultScoring().Best("aura", []Candidate{
		{ID: "first", Title: "Aura One"},
		{ID: "second", Title: "Aura Two"},
	})
	if !ok || ref.ID != "first" {
		t.Errorf("Best = %+v, %v; want first", ref, ok)
	}
}

func TestBest_Threshold(t *testing.T) {
	s := DefaultScoring()
	// One shared common word against a longer dissimilar title: 1/4*60 = 15.
	if ref, ok := s.Best("the garden", []Candidate{{ID: "x", Title: "The Quarterly Revenue Report"}}); ok {
		t.Errorf("Best = %+v, want not found", ref)
	}
	if _, ok := s.Best("anything", nil); ok {
		t.Error("empty candidate list should not resolve")
	}
	if _, ok := s.Best("aura", []Candidate{{ID: "", Title: "Aura"}}); ok {
		t.Error("candidates without ids are skipped")
	}

	s.Threshold = 10
	if _, ok := s.Best("the garden", []Candidate{{ID: "x", Title: "The Quarterly Revenue Report"}}); !ok {
		t.Error("lowered threshold should accept the overlap match")
	}
}
