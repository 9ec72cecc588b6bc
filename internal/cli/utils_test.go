package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/animerec/internal/models"
)

func sampleRecommendations() *models.RecommendResponse {
	return &models.RecommendResponse{
		Title:     "naruto",
		Resolved:  "Naruto",
		QueryTime: 3,
		Recommendations: []*models.Recommendation{
			{Rank: 1, Score: 0.8123, Record: models.CatalogRecord{ID: 269, Title: "Bleach", Genres: "Action", Synopsis: "A soul reaper."}},
			{Rank: 2, Score: 0.5, Record: models.CatalogRecord{ID: 21, Title: "One Piece", TitleEnglish: "One Piece"}},
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{" compact ", OutputCompact, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteRecommendations_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, sampleRecommendations(), OutputJSON); err != nil {
		t.Fatalf("WriteRecommendations(json): %v", err)
	}
	var decoded models.RecommendResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Resolved != "Naruto" || len(decoded.Recommendations) != 2 || decoded.Recommendations[0].Record.ID != 269 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteRecommendations_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, sampleRecommendations(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{`Top 2 recommendations for "Naruto"`, "3ms", "Rank: 1", "Score: 0.8123", "Title: Bleach", "Genres: Action", "A soul reaper."} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, "English: One Piece") {
		t.Errorf("English title equal to the title should be omitted:\n%s", out)
	}
}

func TestWriteRecommendations_compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, sampleRecommendations(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	want := "1\t0.8123\tBleach\n2\t0.5000\tOne Piece\n"
	if buf.String() != want {
		t.Errorf("compact = %q, want %q", buf.String(), want)
	}
}

func TestWriteSuggestions(t *testing.T) {
	resp := &models.SuggestResponse{Query: "narto", Suggestions: []models.TitleMatch{{Title: "Naruto", Score: 91}}}
	var buf bytes.Buffer
	if err := WriteSuggestions(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Did you mean") || !strings.Contains(buf.String(), "(91)") {
		t.Errorf("text = %q", buf.String())
	}

	buf.Reset()
	if err := WriteSuggestions(&buf, &models.SuggestResponse{Query: "zzz", Suggestions: []models.TitleMatch{}}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `No titles resemble "zzz"`) {
		t.Errorf("empty text = %q", buf.String())
	}

	buf.Reset()
	if err := WriteSuggestions(&buf, resp, OutputCompact); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "91\tNaruto\n" {
		t.Errorf("compact = %q", buf.String())
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	resp := &models.SearchResponse{
		Query:     "reaper",
		Total:     1,
		QueryTime: 10,
		Fuzzy:     true,
		Hits:      []*models.SearchHit{{Rank: 1, Score: 1.5, Record: models.CatalogRecord{ID: 269, Title: "Bleach"}}},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"Found 1 results", "10ms", "(fuzzy)", "ID: 269", "Title: Bleach"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, buf.String())
		}
	}
}

func TestWriteSearchResults_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, &models.SearchResponse{Query: "x"}, OutputFormat("unknown")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Found 0 results") {
		t.Errorf("unknown format should render text, got %q", buf.String())
	}
}

func TestWriteStatus_text(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	usage := int64(2_500_000)
	status := &models.CatalogStatus{
		Records:        1250,
		LastUpdated:    now.Add(-3 * time.Hour).Format("2006-01-02 15:04:05"),
		Fresh:          true,
		CacheBackend:   "json",
		CachePath:      "/tmp/anime_cache.json",
		DiskUsageBytes: &usage,
		Embedder:       "tfidf",
		MatrixDim:      1250,
		Fingerprint:    "0123456789abcdef0123",
		PageWarnings:   2,
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText, now); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"1,250", "3 hours ago", "2.5 MB", "tfidf (1250x1250 matrix)", "0123456789abcdef...", "2 page(s) failed"} {
		if !strings.Contains(out, sub) {
			t.Errorf("status output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteStatus_unknownLastUpdated(t *testing.T) {
	var buf bytes.Buffer
	status := &models.CatalogStatus{LastUpdated: "Unknown", CacheBackend: "sqlite"}
	if err := WriteStatus(&buf, status, OutputText, time.Now()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Unknown (unknown)") {
		t.Errorf("status = %q", buf.String())
	}
	if strings.Contains(buf.String(), "Disk usage") {
		t.Errorf("disk usage should be omitted when unknown:\n%s", buf.String())
	}
}

func TestWriteRefresh(t *testing.T) {
	resp := &models.RefreshResponse{SessionID: "abc", Records: 1000, Duration: 1500, PageWarnings: []string{"page 3: status 500"}}
	var buf bytes.Buffer
	if err := WriteRefresh(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"Refreshed 1,000 records", "1.5s", "session abc", "warning: page 3: status 500"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("refresh output missing %q:\n%s", sub, buf.String())
		}
	}
}

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	records := models.CatalogSet{
		{ID: 20, Title: "Naruto", Genres: "Action, Adventure"},
		{ID: 21, Title: "One Piece", TitleEnglish: "One Piece", Synopsis: "Pirates."},
	}
	if err := ExportXLSX(path, records); err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(ExportSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][1] != "Title" || rows[1][0] != "20" || rows[1][1] != "Naruto" || rows[2][6] != "Pirates." {
		t.Errorf("rows = %v", rows)
	}
}
