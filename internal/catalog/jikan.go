package catalog

import (
	"strings"

	"github.com/hyperjump/animerec/internal/models"
)

// topAnimePage is one page of the Jikan top-anime listing. Only the fields the
// catalog keeps are decoded; JSON nulls decode to zero values.
type topAnimePage struct {
	Data []jikanAnime `json:"data"`
}

type jikanAnime struct {
	MalID         int          `json:"mal_id"`
	Title         string       `json:"title"`
	TitleEnglish  string       `json:"title_english"`
	TitleJapanese string       `json:"title_japanese"`
	TitleSynonyms []string     `json:"title_synonyms"`
	Synopsis      string       `json:"synopsis"`
	Genres        []jikanGenre `json:"genres"`
	Images        jikanImages  `json:"images"`
}

type jikanGenre struct {
	Name string `json:"name"`
}

type jikanImages struct {
	JPG struct {
		ImageURL string `json:"image_url"`
	} `json:"jpg"`
}

// listSeparator joins synonyms and genre names into a single field.
const listSeparator = ", "

// toRecord maps a wire item onto a CatalogRecord. Absent or null text becomes "".
func (a jikanAnime) toRecord() models.CatalogRecord {
	genres := make([]string, 0, len(a.Genres))
	for _, g := range a.Genres {
		if g.Name != "" {
			genres = append(genres, g.Name)
		}
	}
	synonyms := make([]string, 0, len(a.TitleSynonyms))
	for _, s := range a.TitleSynonyms {
		if s != "" {
			synonyms = append(synonyms, s)
		}
	}
	return models.CatalogRecord{
		ID:            a.MalID,
		Title:         a.Title,
		TitleEnglish:  a.TitleEnglish,
		TitleJapanese: a.TitleJapanese,
		TitleSynonyms: strings.Join(synonyms, listSeparator),
		Synopsis:      a.Synopsis,
		Genres:        strings.Join(genres, listSeparator),
		ImageURL:      a.Images.JPG.ImageURL,
	}
}
