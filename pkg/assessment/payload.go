package assessment

import (
	"io"
	"reflect"
	"strings"
)

// Payload is a create or update request. A nil field is left untouched.
type Payload struct {
	Title                *string      `json:"title,omitempty"`
	Description          *string      `json:"description,omitempty"`
	ServiceType          *ServiceType `json:"service_type,omitempty"`
	Status               *Status      `json:"status,omitempty"`
	Urgency              *Urgency     `json:"urgency_level,omitempty"`
	AssessmentDate       *Date        `json:"assessment_date,omitempty"`
	EstimatedDuration    *int         `json:"estimated_duration,omitempty"`
	CompletionPercentage *int         `json:"completion_percentage,omitempty"`
	OverallRiskScore     *int         `json:"overall_risk_score,omitempty"`
	TotalArea            *float64     `json:"total_area,omitempty"`
	AreaUnit             *AreaUnit    `json:"area_unit,omitempty"`

	ClientName         *string  `json:"client_name,omitempty"`
	ClientPhone        *string  `json:"client_phone,omitempty"`
	ClientEmail        *string  `json:"client_email,omitempty"`
	LocationAddress    *string  `json:"location_address,omitempty"`
	LocationCity       *string  `json:"location_city,omitempty"`
	LocationState      *string  `json:"location_state,omitempty"`
	LocationPostalCode *string  `json:"location_postal_code,omitempty"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`

	SafetyConcerns      *string  `json:"safety_concerns,omitempty"`
	SpecialRequirements *string  `json:"special_requirements,omitempty"`
	AccessRestrictions  *string  `json:"access_restrictions,omitempty"`
	RiskFactors         []string `json:"risk_factors,omitempty"`
	Notes               *string  `json:"notes,omitempty"`
	Recommendations     *string  `json:"recommendations,omitempty"`
	FollowUpRequired    *bool    `json:"follow_up_required,omitempty"`
	FollowUpDate        *Date    `json:"follow_up_date,omitempty"`

	LeadID     *int64 `json:"lead_id,omitempty"`
	AssignedTo *int64 `json:"assigned_to,omitempty"`
	TeamID     *int64 `json:"team_id,omitempty"`

	// PhotoTypes declares the photos submitted alongside this request. It is
	// not stored on the assessment and only feeds the documentation rules.
	PhotoTypes []PhotoType `json:"photo_types,omitempty"`
}

// requestOnlyFields are payload keys that never change the stored assessment
var requestOnlyFields = map[string]bool{"photo_types": true}

// Touched returns the json names of the assessment fields the payload sets
func (p *Payload) Touched() []string {
	var fields []string
	v := reflect.ValueOf(p).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := jsonName(t.Field(i))
		if requestOnlyFields[name] || v.Field(i).IsNil() {
			continue
		}
		fields = append(fields, name)
	}
	return fields
}

// Touches reports whether the payload sets any of the named fields
func (p *Payload) Touches(names ...string) bool {
	for _, touched := range p.Touched() {
		for _, name := range names {
			if touched == name {
				return true
			}
		}
	}
	return false
}

// Changes returns the touched fields whose value would differ from existing.
// A status equal to the current status is not a change.
func (p *Payload) Changes(existing *Assessment) []string {
	var out []string
	for _, field := range p.Touched() {
		if field == "status" && existing != nil && *p.Status == existing.Status {
			continue
		}
		out = append(out, field)
	}
	return out
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return f.Name
}

// Normalize returns a copy with whitespace trimmed, the phone number stripped
// of separators and the email lowercased. New assessments (existing nil)
// default to draft, and moving to completed without a completion value
// implies 100%.
func (p *Payload) Normalize(existing *Assessment) *Payload {
	n := *p
	for _, s := range []**string{
		&n.Title, &n.Description, &n.ClientName, &n.ClientPhone, &n.ClientEmail,
		&n.LocationAddress, &n.LocationCity, &n.LocationState, &n.LocationPostalCode,
		&n.SafetyConcerns, &n.SpecialRequirements, &n.AccessRestrictions,
		&n.Notes, &n.Recommendations,
	} {
		if *s != nil {
			trimmed := strings.TrimSpace(**s)
			*s = &trimmed
		}
	}
	if n.ClientPhone != nil {
		phone := strings.NewReplacer(" ", "", "-", "").Replace(*n.ClientPhone)
		n.ClientPhone = &phone
	}
	if n.ClientEmail != nil {
		email := strings.ToLower(*n.ClientEmail)
		n.ClientEmail = &email
	}
	if n.RiskFactors != nil {
		factors := make([]string, len(n.RiskFactors))
		for i, f := range n.RiskFactors {
			factors[i] = strings.TrimSpace(f)
		}
		n.RiskFactors = factors
	}
	if existing == nil && n.Status == nil {
		draft := StatusDraft
		n.Status = &draft
	}
	completing := n.Status != nil && *n.Status == StatusCompleted &&
		(existing == nil || existing.Status != StatusCompleted)
	if completing && n.CompletionPercentage == nil {
		full := 100
		n.CompletionPercentage = &full
	}
	return &n
}

// ApplyTo returns a copy of base with the payload merged in. Clearing
// follow_up_required also clears the follow-up date.
func (p *Payload) ApplyTo(base *Assessment) *Assessment {
	a := base.Clone()

	setString(&a.Title, p.Title)
	setString(&a.Description, p.Description)
	if p.ServiceType != nil {
		a.ServiceType = *p.ServiceType
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Urgency != nil {
		a.Urgency = *p.Urgency
	}
	if p.AssessmentDate != nil {
		d := *p.AssessmentDate
		a.AssessmentDate = &d
	}
	if p.EstimatedDuration != nil {
		v := *p.EstimatedDuration
		a.EstimatedDuration = &v
	}
	if p.CompletionPercentage != nil {
		a.CompletionPercentage = *p.CompletionPercentage
	}
	if p.OverallRiskScore != nil {
		v := *p.OverallRiskScore
		a.OverallRiskScore = &v
	}
	if p.TotalArea != nil {
		v := *p.TotalArea
		a.TotalArea = &v
	}
	if p.AreaUnit != nil {
		a.AreaUnit = *p.AreaUnit
	}

	setString(&a.ClientName, p.ClientName)
	setString(&a.ClientPhone, p.ClientPhone)
	setString(&a.ClientEmail, p.ClientEmail)
	setString(&a.LocationAddress, p.LocationAddress)
	setString(&a.LocationCity, p.LocationCity)
	setString(&a.LocationState, p.LocationState)
	setString(&a.LocationPostalCode, p.LocationPostalCode)
	if p.Latitude != nil {
		v := *p.Latitude
		a.Latitude = &v
	}
	if p.Longitude != nil {
		v := *p.Longitude
		a.Longitude = &v
	}

	setString(&a.SafetyConcerns, p.SafetyConcerns)
	setString(&a.SpecialRequirements, p.SpecialRequirements)
	setString(&a.AccessRestrictions, p.AccessRestrictions)
	if p.RiskFactors != nil {
		a.RiskFactors = append([]string(nil), p.RiskFactors...)
	}
	setString(&a.Notes, p.Notes)
	setString(&a.Recommendations, p.Recommendations)
	if p.FollowUpRequired != nil {
		a.FollowUpRequired = *p.FollowUpRequired
		if !a.FollowUpRequired {
			a.FollowUpDate = nil
		}
	}
	if p.FollowUpDate != nil && a.FollowUpRequired {
		d := *p.FollowUpDate
		a.FollowUpDate = &d
	}

	if p.LeadID != nil {
		v := *p.LeadID
		a.LeadID = &v
	}
	if p.AssignedTo != nil {
		v := *p.AssignedTo
		a.AssignedTo = &v
	}
	if p.TeamID != nil {
		v := *p.TeamID
		a.TeamID = &v
	}
	return a
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// SectionPayload is a section create or update request
type SectionPayload struct {
	Name          *string        `json:"name,omitempty"`
	Description   *string        `json:"description,omitempty"`
	SectionType   *SectionType   `json:"section_type,omitempty"`
	Status        *SectionStatus `json:"status,omitempty"`
	SortOrder     *int           `json:"sort_order,omitempty"`
	IsRequired    *bool          `json:"is_required,omitempty"`
	CurrentScore  *float64       `json:"current_score,omitempty"`
	MaxScore      *float64       `json:"max_score,omitempty"`
	QualityRating *QualityRating `json:"quality_rating,omitempty"`
	Dependencies  []int64        `json:"dependencies,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
}

// ApplyTo returns a copy of base with the payload merged in
func (p *SectionPayload) ApplyTo(base Section) Section {
	s := base
	s.Dependencies = append([]int64(nil), base.Dependencies...)
	if p.Name != nil {
		s.Name = strings.TrimSpace(*p.Name)
	}
	setString(&s.Description, p.Description)
	if p.SectionType != nil {
		s.SectionType = *p.SectionType
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.SortOrder != nil {
		s.SortOrder = *p.SortOrder
	}
	if p.IsRequired != nil {
		s.IsRequired = *p.IsRequired
	}
	if p.CurrentScore != nil {
		v := *p.CurrentScore
		s.CurrentScore = &v
	}
	if p.MaxScore != nil {
		v := *p.MaxScore
		s.MaxScore = &v
	}
	if p.QualityRating != nil {
		s.QualityRating = *p.QualityRating
	}
	if p.Dependencies != nil {
		s.Dependencies = append([]int64(nil), p.Dependencies...)
	}
	setString(&s.Notes, p.Notes)
	if s.Status == "" {
		s.Status = SectionPending
	}
	if s.SectionType == "" {
		s.SectionType = SectionGeneral
	}
	return s
}

// PhotoFile is one uploaded file
type PhotoFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// PhotoUpload is a batch of photos with their parallel metadata arrays
type PhotoUpload struct {
	Files                []PhotoFile
	PhotoTypes           []PhotoType
	Descriptions         []string
	LocationDescriptions []string
}
