// Package extract parses raw racing-data documents into canonical rows.
//
// Extraction is a pure function of the document: no network, no shared
// state. One Extractor can be used concurrently from many goroutines.
package extract

import (
	"errors"
	"fmt"

	"keiba-feature-lab/internal/codec"
)

// Kind tags the structure expected inside a raw document.
type Kind string

// Document kinds.
const (
	KindRaceResult   Kind = "race_result"   // completed race page (result table + info block)
	KindRaceInfo     Kind = "race_info"     // race context block of a completed race page
	KindHorseHistory Kind = "horse_history" // horse career page
	KindRaceCard     Kind = "race_card"     // upcoming race entry table (shutuba)
)

// Extraction failure sentinels. Both mark the whole document unusable:
// partial extraction is never attempted, the caller logs and skips.
var (
	// ErrTableNotFound means the primary data structure is absent from the
	// document (malformed page, removed race).
	ErrTableNotFound = errors.New("primary table not found")

	// ErrRefMismatch means a table row did not carry exactly the reference
	// links it must. Silently misaligned identifiers would corrupt every
	// downstream feature, so the document is rejected outright.
	ErrRefMismatch = errors.New("reference id count does not match table rows")
)

// Document is one raw page as fetched, plus the identifier it was fetched for
// (race id for race pages, horse id for horse pages).
type Document struct {
	Kind Kind
	ID   string
	Body []byte
}

// Extractor turns raw documents into canonical rows using a shared codec.
type Extractor struct {
	codec *codec.Codec
}

// New creates an Extractor around an immutable codec.
func New(c *codec.Codec) *Extractor {
	return &Extractor{codec: c}
}

// fail wraps err with document context.
func fail(doc Document, err error) error {
	return fmt.Errorf("extract %s %s: %w", doc.Kind, doc.ID, err)
}
