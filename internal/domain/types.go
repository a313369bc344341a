package domain

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Vector is a fixed-dimension embedding produced by the hosted embedding model.
type Vector []float32

// Content type tags inferred from a page's transcription.
const (
	ContentTypeText  = "text"
	ContentTypeTable = "table"
	ContentTypeChart = "chart"
)

// Document is a source PDF identified by name. Its pages are ordered and
// numbered from 1; a document is immutable once ingested and replaced as a
// whole on re-ingestion.
type Document struct {
	Name string
	Path string
	Year string
}

// PageImage is one rasterized page of a document, ready for a vision call.
type PageImage struct {
	Doc    string
	Number int
	Data   []byte
	MIME   string
}

// PageTranscript is the hosted vision model's reading of one page: the full
// transcription as markdown plus a 3-5 bullet summary of it.
type PageTranscript struct {
	Content string
	Summary string
}

// Page is one transcribed page of a document.
type Page struct {
	Doc         string
	Number      int
	Content     string
	Summary     string
	ContentType string
	Year        string
}

// IndexRecord is the persisted unit in the vector index: exactly one per
// page, keyed deterministically by (doc, page). The Vector is set at
// index-write time and omitted from search results.
type IndexRecord struct {
	ID          string
	Content     string
	Summary     string
	Doc         string
	Page        int
	ContentType string
	Year        string
	Vector      Vector
}

// Match is a retrieved record with its similarity score.
type Match struct {
	Record IndexRecord
	Score  float32
}

// recordNamespace scopes the UUIDv5 keys so record IDs never collide with
// identifiers minted elsewhere.
var recordNamespace = uuid.MustParse("6e2b1f76-9e9d-4525-a014-5a60c0f4d593")

// RecordID derives the stable index key for a page. The same (doc, page)
// always yields the same UUID, so re-ingestion overwrites in place.
func RecordID(doc string, page int) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s|%d", doc, page))).String()
}

// NewIndexRecord builds the index record for a transcribed page.
func NewIndexRecord(p Page, vec Vector) IndexRecord {
	return IndexRecord{
		ID:          RecordID(p.Doc, p.Number),
		Content:     p.Content,
		Summary:     p.Summary,
		Doc:         p.Doc,
		Page:        p.Number,
		ContentType: p.ContentType,
		Year:        p.Year,
		Vector:      vec,
	}
}

// EmbeddingText is the text a page is embedded under. The summary rides along
// with the content so its distilled figures contribute to retrieval.
func (p Page) EmbeddingText() string {
	if p.Summary == "" {
		return p.Content
	}
	return p.Content + "\n\n" + p.Summary
}

// SortMatches orders matches by descending score; equal scores fall back to
// document name and then page number so result order is reproducible.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Record.Doc != matches[j].Record.Doc {
			return matches[i].Record.Doc < matches[j].Record.Doc
		}
		return matches[i].Record.Page < matches[j].Record.Page
	})
}
