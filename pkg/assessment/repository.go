package assessment

import (
	"context"
	"io"
	"strings"
)

// Repository persists assessments with their sections and photo metadata.
// Get returns ErrNotFound for unknown ids.
type Repository interface {
	BookingChecker

	// LeadOwner returns the sales owner of a lead, nil when unassigned. Leads
	// of other companies are ErrNotFound.
	LeadOwner(ctx context.Context, companyID, leadID int64) (*int64, error)

	Get(ctx context.Context, id int64) (*Assessment, error)
	List(ctx context.Context, companyID int64) ([]*Assessment, error)
	Create(ctx context.Context, a *Assessment) error
	Update(ctx context.Context, a *Assessment) error
	Delete(ctx context.Context, id int64) error

	SaveSection(ctx context.Context, s *Section) error
	DeleteSection(ctx context.Context, assessmentID, sectionID int64) error
	AddPhotos(ctx context.Context, assessmentID int64, photos []Photo) error
}

// PhotoStore holds photo blobs
type PhotoStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// NormalizeAddress folds case and whitespace so addresses compare equal
// regardless of formatting
func NormalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}
