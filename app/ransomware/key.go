package ransomware

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/byronlabs/vysion-cti/app/vysion"
)

// RecordKey identifies a feed record independently of case, Unicode form and
// surrounding whitespace so that a re-published record is recognised.
func RecordKey(record vysion.FeedRecord) string {
	fold := cases.Fold()

	parts := []string{record.RansomwareGroup, record.Company, record.LinkPost, record.Date}
	for i, p := range parts {
		parts[i] = fold.String(norm.NFKC.String(strings.TrimSpace(p)))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
