package types

import (
	"context"

	"jobfinder-engine/internal/domain"
)

// Query is what a pipeline run searches for.
type Query struct {
	Position string
	Location string
}

// CandidateRef is the minimal handle needed to fetch a posting's detail.
// Key is stable within a run and drives in-run dedup.
type CandidateRef struct {
	Key  string
	URL  string
	Hint map[string]string // listing-card fields already seen, keyed like RawRecord.Data
}

type Page struct {
	Candidates []CandidateRef
	HasMore    bool
}

// RawRecord is a source-shaped detail payload. JSON sources keep their
// nested structure; markup sources store flat extracted fields.
type RawRecord struct {
	Source domain.Source
	Data   map[string]any
}

// Adapter is one external source of postings.
type Adapter interface {
	Source() domain.Source
	PageSize() int
	ListPage(ctx context.Context, q Query, offset int) (Page, error)
	FetchDetail(ctx context.Context, ref CandidateRef) (RawRecord, error)
}

// Field keys shared by markup adapters and the normalizer.
const (
	FieldTitle       = "title"
	FieldCompany     = "company"
	FieldLocation    = "location"
	FieldSalary      = "salary"
	FieldDescription = "description"
	FieldApplyLink   = "apply_link"
)
