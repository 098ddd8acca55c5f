package services

import (
	"context"
	"time"
)

// ContentHandle is fetched page content handed to extraction.
type ContentHandle struct {
	URL       string
	MediaType string
	Body      []byte
	FetchedAt time.Time
}

// CandidateIdentifier is one bibliographic identifier extracted from content.
type CandidateIdentifier struct {
	Kind       string // doi, isbn, pmid, arxiv
	Value      string
	Confidence float64
}

// MetadataDraft is the extracted fallback metadata used to create an item
// when no identifier-based path succeeds.
type MetadataDraft struct {
	Title       string
	Authors     []string
	Published   string
	Publisher   string
	ItemType    string
	Identifiers []CandidateIdentifier
	Extra       map[string]string
}

// ItemSnapshot is the reference manager's view of a stored item.
type ItemSnapshot struct {
	Key      string
	Title    string
	ItemType string
	Fields   map[string]string
}

// Validation is the completeness verdict for a stored item.
type Validation struct {
	Complete      bool
	MissingFields []string
}

// ContentFetcher retrieves page content for a tracked URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (*ContentHandle, error)
}

// IdentifierExtractor pulls candidate identifiers out of fetched content.
type IdentifierExtractor interface {
	Identifiers(ctx context.Context, content *ContentHandle) ([]CandidateIdentifier, error)
}

// MetadataExtractor builds a fallback metadata draft from fetched content.
type MetadataExtractor interface {
	Draft(ctx context.Context, content *ContentHandle) (*MetadataDraft, error)
}

// ReferenceService is the contract against the local reference-manager
// ("linker") HTTP API.
type ReferenceService interface {
	// AnalyzeURL asks the linker to resolve a URL into an item, creating
	// one when it can.
	AnalyzeURL(ctx context.Context, url string) (*ItemSnapshot, error)
	// LookupURL returns the item the linker already holds for a URL, or
	// a not-found error.
	LookupURL(ctx context.Context, url string) (*ItemSnapshot, error)
	// CreateItem stores an item built from an extracted metadata draft.
	CreateItem(ctx context.Context, draft *MetadataDraft) (*ItemSnapshot, error)
	// GetItem fetches a stored item by key.
	GetItem(ctx context.Context, key string) (*ItemSnapshot, error)
	// ValidateCitation classifies the completeness of a stored item.
	ValidateCitation(ctx context.Context, key string) (*Validation, error)
}
