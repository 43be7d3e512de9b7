package assessment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/fieldops/pkg/authz"
)

// Status is the lifecycle state of an assessment
type Status string

const (
	StatusDraft       Status = "draft"
	StatusScheduled   Status = "scheduled"
	StatusInProgress  Status = "in_progress"
	StatusPaused      Status = "paused"
	StatusRescheduled Status = "rescheduled"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// AllStatuses lists every assessment status
var AllStatuses = []Status{
	StatusDraft,
	StatusScheduled,
	StatusInProgress,
	StatusPaused,
	StatusRescheduled,
	StatusCompleted,
	StatusCancelled,
}

// ServiceType selects the service-specific business rules
type ServiceType string

const (
	ServiceWaterproofing ServiceType = "waterproofing"
	ServicePainting      ServiceType = "painting"
	ServiceSportsCourt   ServiceType = "sports_court"
	ServiceIndustrial    ServiceType = "industrial"
	ServiceGeneral       ServiceType = "general"
)

// Urgency is the urgency_level of an assessment
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

// AreaUnit is the unit total_area is measured in
type AreaUnit string

const (
	AreaSquareFeet  AreaUnit = "sqft"
	AreaSquareMeter AreaUnit = "sqm"
)

// PhotoType classifies what a photo documents
type PhotoType string

const (
	PhotoGeneral     PhotoType = "general"
	PhotoOverview    PhotoType = "overview"
	PhotoDetail      PhotoType = "detail"
	PhotoDamage      PhotoType = "damage"
	PhotoMeasurement PhotoType = "measurement"
	PhotoSafety      PhotoType = "safety"
	PhotoCompliance  PhotoType = "compliance"
	PhotoBefore      PhotoType = "before"
	PhotoAfter       PhotoType = "after"
)

// SectionType classifies an assessment section
type SectionType string

const (
	SectionRoof       SectionType = "roof"
	SectionWall       SectionType = "wall"
	SectionFloor      SectionType = "floor"
	SectionFoundation SectionType = "foundation"
	SectionStructural SectionType = "structural"
	SectionDrainage   SectionType = "drainage"
	SectionSurface    SectionType = "surface"
	SectionElectrical SectionType = "electrical"
	SectionSafety     SectionType = "safety"
	SectionGeneral    SectionType = "general"
)

// SectionStatus is the progress state of a section
type SectionStatus string

const (
	SectionPending    SectionStatus = "pending"
	SectionInProgress SectionStatus = "in_progress"
	SectionCompleted  SectionStatus = "completed"
	SectionSkipped    SectionStatus = "skipped"
)

// QualityRating is the graded outcome of a section
type QualityRating string

const (
	RatingExcellent QualityRating = "excellent"
	RatingGood      QualityRating = "good"
	RatingFair      QualityRating = "fair"
	RatingPoor      QualityRating = "poor"
	RatingCritical  QualityRating = "critical"
)

// ExpectedRating returns the rating bucket for a score percentage
func ExpectedRating(percentage float64) QualityRating {
	switch {
	case percentage >= 90:
		return RatingExcellent
	case percentage >= 75:
		return RatingGood
	case percentage >= 60:
		return RatingFair
	case percentage >= 40:
		return RatingPoor
	default:
		return RatingCritical
	}
}

const dateLayout = "2006-01-02"

// Date is a calendar day, stored as midnight UTC
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in t's location
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return d.Format(dateLayout)
}

// AddMonths returns the date n calendar months later
func (d Date) AddMonths(n int) Date {
	return Date{d.AddDate(0, n, 0)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

// Scan implements sql.Scanner
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// Assessment is a scheduled on-site evaluation for a client location
type Assessment struct {
	ID          int64  `json:"id"`
	CompanyID   int64  `json:"company_id"`
	LeadID      *int64 `json:"lead_id,omitempty"`
	LeadOwnerID *int64 `json:"lead_owner_id,omitempty"`
	AssignedTo  *int64 `json:"assigned_to,omitempty"`
	CreatedBy   *int64 `json:"created_by,omitempty"`
	TeamID      *int64 `json:"team_id,omitempty"`

	Title                string      `json:"title"`
	Description          string      `json:"description,omitempty"`
	ServiceType          ServiceType `json:"service_type"`
	Status               Status      `json:"status"`
	Urgency              Urgency     `json:"urgency_level,omitempty"`
	AssessmentDate       *Date       `json:"assessment_date,omitempty"`
	EstimatedDuration    *int        `json:"estimated_duration,omitempty"`
	CompletionPercentage int         `json:"completion_percentage"`
	OverallRiskScore     *int        `json:"overall_risk_score,omitempty"`
	TotalArea            *float64    `json:"total_area,omitempty"`
	AreaUnit             AreaUnit    `json:"area_unit,omitempty"`

	ClientName         string   `json:"client_name"`
	ClientPhone        string   `json:"client_phone,omitempty"`
	ClientEmail        string   `json:"client_email,omitempty"`
	LocationAddress    string   `json:"location_address"`
	LocationCity       string   `json:"location_city,omitempty"`
	LocationState      string   `json:"location_state,omitempty"`
	LocationPostalCode string   `json:"location_postal_code,omitempty"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`

	SafetyConcerns      string   `json:"safety_concerns,omitempty"`
	SpecialRequirements string   `json:"special_requirements,omitempty"`
	AccessRestrictions  string   `json:"access_restrictions,omitempty"`
	RiskFactors         []string `json:"risk_factors,omitempty"`
	Notes               string   `json:"notes,omitempty"`
	Recommendations     string   `json:"recommendations,omitempty"`
	FollowUpRequired    bool     `json:"follow_up_required"`
	FollowUpDate        *Date    `json:"follow_up_date,omitempty"`

	ApprovedBy *int64     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Sections []Section `json:"sections,omitempty"`
	Photos   []Photo   `json:"photos,omitempty"`
}

// IsTerminal reports whether the assessment is completed or cancelled
func (a *Assessment) IsTerminal() bool {
	return IsTerminal(a.Status)
}

// PhotoStorage returns the total bytes of stored photos
func (a *Assessment) PhotoStorage() int64 {
	var total int64
	for _, p := range a.Photos {
		total += p.Size
	}
	return total
}

// HasPhotoType reports whether a stored photo has the given type
func (a *Assessment) HasPhotoType(t PhotoType) bool {
	for _, p := range a.Photos {
		if p.PhotoType == t {
			return true
		}
	}
	return false
}

// Section returns the section with the given id
func (a *Assessment) Section(id int64) (*Section, bool) {
	for i := range a.Sections {
		if a.Sections[i].ID == id {
			return &a.Sections[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy
func (a *Assessment) Clone() *Assessment {
	c := *a
	c.RiskFactors = append([]string(nil), a.RiskFactors...)
	c.Sections = make([]Section, len(a.Sections))
	for i, s := range a.Sections {
		c.Sections[i] = s
		c.Sections[i].Dependencies = append([]int64(nil), s.Dependencies...)
	}
	c.Photos = append([]Photo(nil), a.Photos...)
	return &c
}

// Resource returns the authorization view of the assessment
func (a *Assessment) Resource() *authz.Resource {
	return &authz.Resource{
		Type:        authz.ResourceAssessment,
		ID:          a.ID,
		CompanyID:   a.CompanyID,
		AssignedTo:  a.AssignedTo,
		CreatedBy:   a.CreatedBy,
		TeamID:      a.TeamID,
		LeadOwnerID: a.LeadOwnerID,
		Status:      string(a.Status),
		Dependents:  len(a.Photos),
	}
}

// Section is an ordered, scored part of an assessment
type Section struct {
	ID            int64         `json:"id"`
	AssessmentID  int64         `json:"assessment_id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	SectionType   SectionType   `json:"section_type"`
	Status        SectionStatus `json:"status"`
	SortOrder     int           `json:"sort_order"`
	IsRequired    bool          `json:"is_required"`
	CurrentScore  *float64      `json:"current_score,omitempty"`
	MaxScore      *float64      `json:"max_score,omitempty"`
	QualityRating QualityRating `json:"quality_rating,omitempty"`
	Dependencies  []int64       `json:"dependencies,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// Resource returns the authorization view of the section under parent
func (s *Section) Resource(parent *Assessment) *authz.Resource {
	return &authz.Resource{
		Type:      authz.ResourceAssessmentSection,
		ID:        s.ID,
		CompanyID: parent.CompanyID,
		Status:    string(s.Status),
		Parent:    parent.Resource(),
	}
}

// Photo is the stored metadata of an uploaded assessment photo
type Photo struct {
	ID                  int64     `json:"id"`
	AssessmentID        int64     `json:"assessment_id"`
	Filename            string    `json:"filename"`
	StorageKey          string    `json:"storage_key"`
	ContentType         string    `json:"content_type"`
	Size                int64     `json:"size"`
	Width               int       `json:"width"`
	Height              int       `json:"height"`
	PhotoType           PhotoType `json:"photo_type"`
	Description         string    `json:"description,omitempty"`
	LocationDescription string    `json:"location_description,omitempty"`
	UploadedBy          int64     `json:"uploaded_by"`
	CreatedAt           time.Time `json:"created_at"`
}
