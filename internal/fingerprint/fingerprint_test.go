package fingerprint

import (
	"testing"

	"github.com/hyperjump/animerec/internal/models"
)

func TestCompute(t *testing.T) {
	a := models.CatalogSet{
		{ID: 1, Title: "Naruto", Synopsis: "ninja", Genres: "Action"},
		{ID: 2, Title: "Bleach", Synopsis: "soul reaper", Genres: "Action"},
	}
	if Compute(a) != Compute(a.Clone()) {
		t.Error("equal sets should share a fingerprint")
	}
	if len(Compute(a)) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(Compute(a)))
	}

	reordered := models.CatalogSet{a[1], a[0]}
	if Compute(a) == Compute(reordered) {
		t.Error("order must change the fingerprint")
	}

	edited := a.Clone()
	edited[1].Synopsis = "soul reapers"
	if Compute(a) == Compute(edited) {
		t.Error("feature text must change the fingerprint")
	}

	// Boundaries between fields must not be ambiguous.
	x := models.CatalogSet{{ID: 1, Synopsis: "ab", Genres: ""}, {ID: 2, Synopsis: "c"}}
	y := models.CatalogSet{{ID: 1, Synopsis: "a", Genres: ""}, {ID: 2, Synopsis: "bc"}}
	if Compute(x) == Compute(y) {
		t.Error("shifted text between records must change the fingerprint")
	}

	if Compute(nil) != Compute(models.CatalogSet{}) {
		t.Error("nil and empty sets should match")
	}
}
