// Package resolve maps human-readable names onto record ids by scored
// matching against a bounded candidate list fetched per request.
package resolve

import "strings"

// Scoring holds the tier scores and acceptance threshold. The tiers
// favour exact and substring matches over word overlap so ties break
// predictably.
type Scoring struct {
	Exact        int     // title equals query
	Contains     int     // title contains query
	Contained    int     // query contains title
	OverlapScale float64 // multiplier for the word-overlap ratio
	Threshold    int     // minimum score accepted
}

// DefaultScoring returns the standard tiers: 100, 80, 70, overlap
// scaled to 60, accepted from 50.
func DefaultScoring() Scoring {
	return Scoring{
		Exact:        100,
		Contains:     80,
		Contained:    70,
		OverlapScale: 60,
		Threshold:    50,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Score rates how well title matches query. Both are compared
// lowercased and trimmed. Zero means no relation at all.
func (s Scoring) Score(query, title string) float64 {
	q, t := normalize(query), normalize(title)
	switch {
	case q == "" || t == "":
		return 0
	case q == t:
		return float64(s.Exact)
	case strings.Contains(t, q):
		return float64(s.Contains)
	case strings.Contains(q, t):
		return float64(s.Contained)
	}

	qWords, tWords := strings.Fields(q), strings.Fields(t)
	matching := 0
	for _, qw := range qWords {
		for _, tw := range tWords {
			if qw == tw || strings.Contains(qw, tw) || strings.Contains(tw, qw) {
				matching++
				break
			}
		}
	}
	if matching == 0 {
		return 0
	}
	return float64(matching) / float64(max(len(qWords), len(tWords))) * s.OverlapScale
}

// Candidate is one record that a name might refer to.
type Candidate struct {
	ID    string
	Title string
}

// Reference is an accepted match.
type Reference struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"matchScore"`
}

// Best returns the highest-scoring candidate if it clears the
// threshold. The first of equally scored candidates wins.
func (s Scoring) Best(query string, candidates []Candidate) (Reference, bool) {
	var best Reference
	for _, c := range candidates {
		if c.ID == "" {
			continue
		}
		score := s.Score(query, c.Title)
		if score > 0 && score > best.Score {
			best = Reference{ID: c.ID, Title: c.Title, Score: score}
		}
	}
	if best.ID == "" || best.Score < float64(s.Threshold) {
		return Reference{}, false
	}
	return best, true
}
