// Package fingerprint computes the identity of a catalog snapshot.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/hyperjump/animerec/internal/models"
)

// Compute returns a hex sha256 over the ordered records' ids and feature texts.
// Two sets with the same fingerprint produce the same similarity matrix.
func Compute(records models.CatalogSet) string {
	h := sha256.New()
	var buf []byte
	for _, r := range records {
		text := r.FeatureText()
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(r.ID), 10)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, int64(len(text)), 10)
		buf = append(buf, 0)
		h.Write(buf)
		h.Write([]byte(text))
	}
	return hex.EncodeToString(h.Sum(nil))
}
