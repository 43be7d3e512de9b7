package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/platinummonkey/fieldops/pkg/assessment"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// unique indexes that back validator checks, see migration 7
const (
	bookingIndex   = "uq_assessments_booking"
	sortOrderIndex = "uq_assessment_sections_sort_order"
)

const assessmentColumns = `id, company_id, lead_id, lead_owner_id, assigned_to, created_by, team_id,
	title, description, service_type, status, urgency_level, assessment_date, estimated_duration,
	completion_percentage, overall_risk_score, total_area, area_unit,
	client_name, client_phone, client_email,
	location_address, location_city, location_state, location_postal_code, latitude, longitude,
	safety_concerns, special_requirements, access_restrictions, risk_factors, notes, recommendations,
	follow_up_required, follow_up_date, approved_by, approved_at, created_at, updated_at`

const sectionColumns = `id, assessment_id, name, description, section_type, status, sort_order, is_required,
	current_score, max_score, quality_rating, dependencies, notes, completed_at`

const photoColumns = `id, assessment_id, filename, storage_key, content_type, size, width, height,
	photo_type, description, location_description, uploaded_by, created_at`

// normalizedAddressSQL mirrors assessment.NormalizeAddress
const normalizedAddressSQL = `lower(regexp_replace(btrim(location_address), '\s+', ' ', 'g'))`

// AssessmentRepository persists assessments in PostgreSQL. Reads that feed a
// write decision go to the primary; listings may be served by a replica.
type AssessmentRepository struct {
	conns *ConnectionManager
}

// NewAssessmentRepository creates a repository over the given connections
func NewAssessmentRepository(conns *ConnectionManager) *AssessmentRepository {
	return &AssessmentRepository{conns: conns}
}

var _ assessment.Repository = (*AssessmentRepository)(nil)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(row rowScanner) (*assessment.Assessment, error) {
	a := &assessment.Assessment{}
	err := row.Scan(
		&a.ID, &a.CompanyID, &a.LeadID, &a.LeadOwnerID, &a.AssignedTo, &a.CreatedBy, &a.TeamID,
		&a.Title, &a.Description, &a.ServiceType, &a.Status, &a.Urgency, &a.AssessmentDate, &a.EstimatedDuration,
		&a.CompletionPercentage, &a.OverallRiskScore, &a.TotalArea, &a.AreaUnit,
		&a.ClientName, &a.ClientPhone, &a.ClientEmail,
		&a.LocationAddress, &a.LocationCity, &a.LocationState, &a.LocationPostalCode, &a.Latitude, &a.Longitude,
		&a.SafetyConcerns, &a.SpecialRequirements, &a.AccessRestrictions, pq.Array(&a.RiskFactors), &a.Notes, &a.Recommendations,
		&a.FollowUpRequired, &a.FollowUpDate, &a.ApprovedBy, &a.ApprovedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanSection(row rowScanner) (assessment.Section, error) {
	var s assessment.Section
	err := row.Scan(
		&s.ID, &s.AssessmentID, &s.Name, &s.Description, &s.SectionType, &s.Status, &s.SortOrder, &s.IsRequired,
		&s.CurrentScore, &s.MaxScore, &s.QualityRating, pq.Array(&s.Dependencies), &s.Notes, &s.CompletedAt,
	)
	return s, err
}

func scanPhoto(row rowScanner) (assessment.Photo, error) {
	var p assessment.Photo
	var uploadedBy sql.NullInt64
	err := row.Scan(
		&p.ID, &p.AssessmentID, &p.Filename, &p.StorageKey, &p.ContentType, &p.Size, &p.Width, &p.Height,
		&p.PhotoType, &p.Description, &p.LocationDescription, &uploadedBy, &p.CreatedAt,
	)
	p.UploadedBy = uploadedBy.Int64
	return p, err
}

// Get loads an assessment with its sections and photos
func (r *AssessmentRepository) Get(ctx context.Context, id int64) (*assessment.Assessment, error) {
	db := r.conns.Primary()

	a, err := scanAssessment(db.QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, assessment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if a.Sections, err = r.sections(ctx, db, id); err != nil {
		return nil, err
	}
	if a.Photos, err = r.photos(ctx, db, id); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AssessmentRepository) sections(ctx context.Context, db *sql.DB, assessmentID int64) ([]assessment.Section, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+sectionColumns+` FROM assessment_sections WHERE assessment_id = $1 ORDER BY sort_order, id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var out []assessment.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *AssessmentRepository) photos(ctx context.Context, db *sql.DB, assessmentID int64) ([]assessment.Photo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM assessment_photos WHERE assessment_id = $1 ORDER BY id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var out []assessment.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// List returns a company's assessments without their sections or photos
func (r *AssessmentRepository) List(ctx context.Context, companyID int64) ([]*assessment.Assessment, error) {
	rows, err := r.conns.Replica().QueryContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE company_id = $1 ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var out []*assessment.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func assessmentArgs(a *assessment.Assessment) []interface{} {
	return []interface{}{
		a.CompanyID, a.LeadID, a.LeadOwnerID, a.AssignedTo, a.CreatedBy, a.TeamID,
		a.Title, a.Description, a.ServiceType, a.Status, a.Urgency, a.AssessmentDate, a.EstimatedDuration,
		a.CompletionPercentage, a.OverallRiskScore, a.TotalArea, a.AreaUnit,
		a.ClientName, a.ClientPhone, a.ClientEmail,
		a.LocationAddress, a.LocationCity, a.LocationState, a.LocationPostalCode, a.Latitude, a.Longitude,
		a.SafetyConcerns, a.SpecialRequirements, a.AccessRestrictions, pq.Array(nonNilStrings(a.RiskFactors)), a.Notes, a.Recommendations,
		a.FollowUpRequired, a.FollowUpDate, a.ApprovedBy, a.ApprovedAt,
	}
}

// writableColumns lists assessmentColumns minus id and the timestamps, in
// the order of assessmentArgs
var writableColumns = []string{
	"company_id", "lead_id", "lead_owner_id", "assigned_to", "created_by", "team_id",
	"title", "description", "service_type", "status", "urgency_level", "assessment_date", "estimated_duration",
	"completion_percentage", "overall_risk_score", "total_area", "area_unit",
	"client_name", "client_phone", "client_email",
	"location_address", "location_city", "location_state", "location_postal_code", "latitude", "longitude",
	"safety_concerns", "special_requirements", "access_restrictions", "risk_factors", "notes", "recommendations",
	"follow_up_required", "follow_up_date", "approved_by", "approved_at",
}

func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}

// Create inserts the assessment row and sets its id and timestamps
func (r *AssessmentRepository) Create(ctx context.Context, a *assessment.Assessment) error {
	query := `INSERT INTO assessments (` + strings.Join(writableColumns, ", ") + `)
		VALUES (` + placeholders(1, len(writableColumns)) + `)
		RETURNING id, created_at, updated_at`

	err := r.conns.Primary().QueryRowContext(ctx, query, assessmentArgs(a)...).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if conflict := uniqueConflict(err); conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

// Update rewrites the assessment row. Sections and photos are untouched.
func (r *AssessmentRepository) Update(ctx context.Context, a *assessment.Assessment) error {
	sets := make([]string, len(writableColumns))
	for i, col := range writableColumns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+2)
	}
	query := `UPDATE assessments SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`

	args := append([]interface{}{a.ID}, assessmentArgs(a)...)
	err := r.conns.Primary().QueryRowContext(ctx, query, args...).Scan(&a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return assessment.ErrNotFound
	}
	if conflict := uniqueConflict(err); conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("failed to update assessment: %w", err)
	}
	return nil
}

// Delete removes the assessment; sections and photo rows cascade
func (r *AssessmentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.conns.Primary().ExecContext(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	return expectAffected(res)
}

// SaveSection inserts a section when its id is zero and updates it otherwise
func (r *AssessmentRepository) SaveSection(ctx context.Context, s *assessment.Section) error {
	db := r.conns.Primary()
	deps := pq.Array(nonNilIDs(s.Dependencies))

	if s.ID == 0 {
		err := db.QueryRowContext(ctx, `
			INSERT INTO assessment_sections (assessment_id, name, description, section_type, status, sort_order,
				is_required, current_score, max_score, quality_rating, dependencies, notes, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id`,
			s.AssessmentID, s.Name, s.Description, s.SectionType, s.Status, s.SortOrder,
			s.IsRequired, s.CurrentScore, s.MaxScore, s.QualityRating, deps, s.Notes, s.CompletedAt,
		).Scan(&s.ID)
		if isForeignKeyViolation(err) {
			return assessment.ErrNotFound
		}
		if conflict := uniqueConflict(err); conflict != nil {
			return conflict
		}
		if err != nil {
			return fmt.Errorf("failed to create section: %w", err)
		}
		return nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE assessment_sections SET name = $3, description = $4, section_type = $5, status = $6,
			sort_order = $7, is_required = $8, current_score = $9, max_score = $10, quality_rating = $11,
			dependencies = $12, notes = $13, completed_at = $14
		WHERE id = $1 AND assessment_id = $2`,
		s.ID, s.AssessmentID, s.Name, s.Description, s.SectionType, s.Status,
		s.SortOrder, s.IsRequired, s.CurrentScore, s.MaxScore, s.QualityRating,
		deps, s.Notes, s.CompletedAt,
	)
	if conflict := uniqueConflict(err); conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("failed to update section: %w", err)
	}
	return expectAffected(res)
}

// DeleteSection removes one section of an assessment
func (r *AssessmentRepository) DeleteSection(ctx context.Context, assessmentID, sectionID int64) error {
	res, err := r.conns.Primary().ExecContext(ctx,
		`DELETE FROM assessment_sections WHERE id = $1 AND assessment_id = $2`, sectionID, assessmentID)
	if err != nil {
		return fmt.Errorf("failed to delete section: %w", err)
	}
	return expectAffected(res)
}

// AddPhotos records photo metadata in one transaction, assigning ids
func (r *AssessmentRepository) AddPhotos(ctx context.Context, assessmentID int64, photos []assessment.Photo) error {
	tx, err := r.conns.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range photos {
		p := &photos[i]
		p.AssessmentID = assessmentID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO assessment_photos (assessment_id, filename, storage_key, content_type, size, width, height,
				photo_type, description, location_description, uploaded_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at`,
			assessmentID, p.Filename, p.StorageKey, p.ContentType, p.Size, p.Width, p.Height,
			p.PhotoType, p.Description, p.LocationDescription, nullID(p.UploadedBy),
		).Scan(&p.ID, &p.CreatedAt)
		if isForeignKeyViolation(err) {
			return assessment.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to record photo %s: %w", p.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit photos: %w", err)
	}
	return nil
}

// FindBookingConflict returns another live assessment of the company booked
// at the same normalized address on the same day, or nil.
func (r *AssessmentRepository) FindBookingConflict(ctx context.Context, companyID int64, address string, date assessment.Date, excludeID int64) (*assessment.Assessment, error) {
	a, err := scanAssessment(r.conns.Primary().QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments
		WHERE company_id = $1 AND assessment_date = $2 AND status <> $3 AND id <> $4
			AND `+normalizedAddressSQL+` = $5
		ORDER BY id LIMIT 1`,
		companyID, date, assessment.StatusCancelled, excludeID, assessment.NormalizeAddress(address)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check booking conflict: %w", err)
	}
	return a, nil
}

// LeadOwner returns the user a lead is assigned to. A lead of another company
// is reported as not found.
func (r *AssessmentRepository) LeadOwner(ctx context.Context, companyID, leadID int64) (*int64, error) {
	var owner sql.NullInt64
	err := r.conns.Primary().QueryRowContext(ctx,
		`SELECT assigned_to FROM leads WHERE id = $1 AND company_id = $2`, leadID, companyID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, assessment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up lead %d: %w", leadID, err)
	}
	if !owner.Valid {
		return nil, nil
	}
	return &owner.Int64, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return assessment.ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

// uniqueConflict reports a race the validator lost: two writers passed the
// advisory check and the index rejected the second. It returns nil for any
// other error.
func uniqueConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return nil
	}
	var v assessment.Violation
	switch pqErr.Constraint {
	case bookingIndex:
		v = assessment.Violation{Field: "assessment_date", Rule: "duplicate_booking",
			Message: "another assessment is already booked at this address on this date"}
	case sortOrderIndex:
		v = assessment.Violation{Field: "sort_order", Rule: "duplicate_sort_order",
			Message: "sort order is already used by another section"}
	default:
		return nil
	}
	v.Category = assessment.CategoryConflict
	return &assessment.ValidationFailedError{Violations: []assessment.Violation{v}}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// pq encodes a nil slice as NULL, which the NOT NULL array columns reject
func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
