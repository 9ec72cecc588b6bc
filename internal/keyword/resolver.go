package keyword

import (
	"sort"

	"github.com/hyperjump/animerec/internal/models"
)

// DefaultSuggestLimit is used when Suggest is called with a non-positive limit.
const DefaultSuggestLimit = 5

// TitleResolver suggests catalog titles for free-text input. Candidates are every
// title variant of every record, deduplicated in first-seen order.
type TitleResolver struct {
	candidates []string
	processed  []string
}

// NewTitleResolver collects the candidate titles of records.
func NewTitleResolver(records models.CatalogSet) *TitleResolver {
	seen := make(map[string]struct{})
	r := &TitleResolver{}
	for _, rec := range records {
		for _, title := range rec.TitleVariants() {
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
			r.candidates = append(r.candidates, title)
			r.processed = append(r.processed, Process(title))
		}
	}
	return r
}

// Candidates returns the deduplicated titles in first-seen order.
func (r *TitleResolver) Candidates() []string {
	return append([]string(nil), r.candidates...)
}

// Suggest returns up to limit candidates ordered by WeightedRatio against input,
// best first. Equal scores keep first-seen order. Input that is empty after
// processing, or an empty catalog, yields no suggestions.
func (r *TitleResolver) Suggest(input string, limit int) []models.TitleMatch {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	query := Process(input)
	if query == "" || len(r.candidates) == 0 {
		return []models.TitleMatch{}
	}
	matches := make([]models.TitleMatch, 0, len(r.candidates))
	for i, title := range r.candidates {
		score := 0
		if r.processed[i] != "" {
			score = weightedProcessed(query, r.processed[i])
		}
		matches = append(matches, models.TitleMatch{Title: title, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Suggest is a one-shot TitleResolver over records.
func Suggest(input string, records models.CatalogSet, limit int) []models.TitleMatch {
	return NewTitleResolver(records).Suggest(input, limit)
}
