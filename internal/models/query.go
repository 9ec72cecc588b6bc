package models

import (
	"fmt"
	"strings"
)

// RecommendQuery is a recommendation request.
type RecommendQuery struct {
	Title string `json:"title"`
	Limit int    `json:"limit,omitempty"`
}

// Validate trims the title, rejects an empty one, and clamps the limit to
// [1, maxLimit] using defaultLimit when unset.
func (q *RecommendQuery) Validate(defaultLimit, maxLimit int) error {
	q.Title = strings.TrimSpace(q.Title)
	if q.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	q.Limit = clampLimit(q.Limit, defaultLimit, maxLimit)
	return nil
}

// SuggestQuery is a title suggestion request.
type SuggestQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate trims the query, rejects an empty one, and clamps the limit.
func (q *SuggestQuery) Validate(defaultLimit, maxLimit int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	q.Limit = clampLimit(q.Limit, defaultLimit, maxLimit)
	return nil
}

func clampLimit(limit, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}
