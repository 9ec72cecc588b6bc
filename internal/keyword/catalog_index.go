package keyword

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/animerec/internal/models"
)

// titleBoost weights title matches over synopsis and genre matches.
const titleBoost = 3.0

// CatalogIndex is an in-memory Bleve index over one catalog snapshot. Documents
// are keyed by catalog position.
type CatalogIndex struct {
	index bleve.Index
	size  int
}

// CatalogHit is one search hit; Index is the record's catalog position.
type CatalogHit struct {
	Index int
	Score float64
}

type catalogDocument struct {
	Titles   string `json:"titles"`
	Synopsis string `json:"synopsis"`
	Genres   string `json:"genres"`
}

// NewCatalogIndex indexes records in memory.
func NewCatalogIndex(records models.CatalogSet) (*CatalogIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so title words match as typed.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("titles", textFieldMapping)
	docMapping.AddFieldMappingsAt("synopsis", textFieldMapping)
	docMapping.AddFieldMappingsAt("genres", textFieldMapping)
	im.AddDocumentMapping("anime", docMapping)
	im.DefaultType = "anime"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	batch := index.NewBatch()
	for i, r := range records {
		doc := catalogDocument{
			Titles:   strings.Join(r.TitleVariants(), " "),
			Synopsis: r.Synopsis,
			Genres:   r.Genres,
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index record %d: %w", r.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index catalog: %w", err)
	}
	return &CatalogIndex{index: index, size: len(records)}, nil
}

// Search matches query against titles (boosted), synopsis and genres and returns
// up to limit hits by descending score. With fuzzy set, each term may be up to
// two edits away from an indexed term.
func (c *CatalogIndex) Search(ctx context.Context, query string, limit int, fuzzy bool) ([]CatalogHit, error) {
	if strings.TrimSpace(query) == "" || c.size == 0 {
		return []CatalogHit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	fields := []struct {
		name  string
		boost float64
	}{{"titles", titleBoost}, {"synopsis", 1}, {"genres", 1}}
	queries := make([]blevequery.Query, 0, len(fields))
	for _, f := range fields {
		queries = append(queries, fieldQuery(query, f.name, f.boost, fuzzy))
	}
	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit
	results, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]CatalogHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		idx, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, CatalogHit{Index: idx, Score: hit.Score})
	}
	return out, nil
}

// fieldQuery builds a match query for one field, or a disjunction of fuzzy term
// queries when fuzzy is set.
func fieldQuery(query, field string, boost float64, fuzzy bool) blevequery.Query {
	if !fuzzy {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	terms := strings.Fields(strings.ToLower(query))
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(2)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed records.
func (c *CatalogIndex) DocCount() (uint64, error) {
	return c.index.DocCount()
}

// Close releases the index.
func (c *CatalogIndex) Close() error {
	return c.index.Close()
}
