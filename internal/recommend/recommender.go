// Package recommend resolves titles to catalog rows and ranks their nearest
// neighbours in the similarity matrix.
package recommend

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/animerec/internal/models"
	"github.com/hyperjump/animerec/internal/vector"
)

// DefaultTopN is used when Recommend is called with a non-positive topN.
const DefaultTopN = 5

// ErrTitleNotFound means no record's title fields match the requested title.
var ErrTitleNotFound = errors.New("title not found")

// Recommender answers nearest-neighbour queries over one immutable snapshot.
type Recommender struct {
	records models.CatalogSet
	matrix  *vector.Matrix
	// exact maps a normalised title variant to the first record carrying it.
	exact map[string]int
	// fields holds each record's normalised title, English, Japanese and synonym fields.
	fields [][4]string
}

// NewRecommender indexes the title fields of records. matrix must have one row
// per record.
func NewRecommender(records models.CatalogSet, matrix *vector.Matrix) (*Recommender, error) {
	if matrix.Dim() != len(records) {
		return nil, fmt.Errorf("matrix dimension %d does not match %d records", matrix.Dim(), len(records))
	}
	r := &Recommender{
		records: records,
		matrix:  matrix,
		exact:   make(map[string]int),
		fields:  make([][4]string, len(records)),
	}
	for i, rec := range records {
		for _, variant := range rec.TitleVariants() {
			key := normalize(variant)
			if _, taken := r.exact[key]; !taken && key != "" {
				r.exact[key] = i
			}
		}
		r.fields[i] = [4]string{
			normalize(rec.Title),
			normalize(rec.TitleEnglish),
			normalize(rec.TitleJapanese),
			normalize(rec.TitleSynonyms),
		}
	}
	return r, nil
}

// normalize applies NFKC and Unicode case folding so full-width and case
// variants of a title compare equal.
func normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// Resolve returns the row of title. An exact match on any title variant wins;
// otherwise the first record, in catalog order, whose title, English title,
// Japanese title or synonym list contains title is chosen.
func (r *Recommender) Resolve(title string) (int, error) {
	key := normalize(title)
	if key == "" {
		return -1, fmt.Errorf("%w: empty title", ErrTitleNotFound)
	}
	if idx, ok := r.exact[key]; ok {
		return idx, nil
	}
	for i, f := range r.fields {
		for _, field := range f {
			if field != "" && strings.Contains(field, key) {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrTitleNotFound, title)
}

// Recommend returns the topN records most similar to title, best first. Equal
// scores keep catalog order and the resolved record itself is never included,
// so the result has min(topN, len(records)-1) entries.
func (r *Recommender) Recommend(title string, topN int) ([]*models.Recommendation, error) {
	idx, err := r.Resolve(title)
	if err != nil {
		return nil, err
	}
	return r.Neighbours(idx, topN), nil
}

// Neighbours ranks the row idx of the matrix. idx must be a valid row.
func (r *Recommender) Neighbours(idx, topN int) []*models.Recommendation {
	if topN <= 0 {
		topN = DefaultTopN
	}
	row := r.matrix.Row(idx)
	order := make([]int, 0, len(row))
	for j := range row {
		if j != idx {
			order = append(order, j)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return row[order[a]] > row[order[b]] })
	if len(order) > topN {
		order = order[:topN]
	}
	out := make([]*models.Recommendation, len(order))
	for rank, j := range order {
		out[rank] = &models.Recommendation{Rank: rank + 1, Score: row[j], Record: r.records[j]}
	}
	return out
}

// Record returns the record at idx.
func (r *Recommender) Record(idx int) models.CatalogRecord {
	return r.records[idx]
}

// Len returns the number of records.
func (r *Recommender) Len() int {
	return len(r.records)
}
