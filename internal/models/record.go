// Package models defines core data structures for catalog records, recommendations, and status.
package models

import "github.com/hyperjump/animerec/pkg/utils"

// CatalogRecord is one anime in the catalog. Optional text fields are always
// present as empty strings so feature concatenation never has to special-case them.
type CatalogRecord struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	TitleEnglish  string `json:"title_english"`
	TitleJapanese string `json:"title_japanese"`
	TitleSynonyms string `json:"title_synonyms"`
	Synopsis      string `json:"synopsis"`
	Genres        string `json:"genres"`
	ImageURL      string `json:"image_url"`
}

// CatalogSet is an ordered sequence of records. The similarity matrix is indexed
// positionally by this order.
type CatalogSet []CatalogRecord

// FeatureText returns the text the similarity index is built from.
func (r CatalogRecord) FeatureText() string {
	return r.Synopsis + " " + r.Genres
}

// Synonyms returns the individual alternate titles.
func (r CatalogRecord) Synonyms() []string {
	return utils.SplitList(r.TitleSynonyms)
}

// GenreList returns the individual genre names.
func (r CatalogRecord) GenreList() []string {
	return utils.SplitList(r.Genres)
}

// TitleVariants returns every non-empty name the record is known by: title,
// English title, Japanese title, then each synonym.
func (r CatalogRecord) TitleVariants() []string {
	out := make([]string, 0, 4)
	for _, t := range []string{r.Title, r.TitleEnglish, r.TitleJapanese} {
		if t != "" {
			out = append(out, t)
		}
	}
	return append(out, r.Synonyms()...)
}

// Clone returns a copy of the set that shares no backing array with s.
func (s CatalogSet) Clone() CatalogSet {
	if s == nil {
		return nil
	}
	out := make(CatalogSet, len(s))
	copy(out, s)
	return out
}
