package assessment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidCreate(t *testing.T) {
	v := newTestValidator(nil)

	res, err := v.Validate(context.Background(), nil, validPayload(t), execE)
	require.NoError(t, err)
	assert.True(t, res.Valid(), res.Violations)
	assert.NoError(t, res.Err())

	require.NotNil(t, res.Payload)
	assert.Equal(t, "0123456789", *res.Payload.ClientPhone)
	assert.Equal(t, "aminah@example.com", *res.Payload.ClientEmail)
	assert.Equal(t, StatusDraft, *res.Payload.Status)
}

func TestValidate_RequiredOnCreateAccumulates(t *testing.T) {
	v := newTestValidator(nil)

	res, err := v.Validate(context.Background(), nil, &Payload{
		ClientPhone: ptr("555"),
	}, execE)
	require.NoError(t, err)
	assert.False(t, res.Valid())

	for _, field := range []string{"title", "service_type", "client_name", "location_address"} {
		assert.True(t, res.Has(field, "required"), field)
	}
	assert.True(t, res.Has("client_phone", "match_invalid"))

	failed, ok := AsValidationFailed(res.Err())
	require.True(t, ok)
	assert.Len(t, failed.Violations, 5)
	assert.Contains(t, failed.Fields(), "client_phone")
}

func TestValidate_FieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Payload)
		field  string
		rule   string
	}{
		{"phone pattern", func(p *Payload) { p.ClientPhone = ptr("03-1234 5678") }, "client_phone", "match_invalid"},
		{"postal code", func(p *Payload) { p.LocationPostalCode = ptr("5045") }, "location_postal_code", "match_invalid"},
		{"duration too short", func(p *Payload) { p.EstimatedDuration = ptr(10) }, "estimated_duration", "out_of_range"},
		{"duration too long", func(p *Payload) { p.EstimatedDuration = ptr(481) }, "estimated_duration", "out_of_range"},
		{"zero area", func(p *Payload) { p.TotalArea = ptr(0.0); p.AreaUnit = ptr(AreaSquareMeter) }, "total_area", "out_of_range"},
		{"risk score", func(p *Payload) { p.OverallRiskScore = ptr(11) }, "overall_risk_score", "out_of_range"},
		{"completion", func(p *Payload) { p.CompletionPercentage = ptr(-1) }, "completion_percentage", "out_of_range"},
		{"urgency enum", func(p *Payload) { p.Urgency = ptr(Urgency("asap")) }, "urgency_level", "in_invalid"},
		{"service enum", func(p *Payload) { p.ServiceType = ptr(ServiceType("plumbing")) }, "service_type", "in_invalid"},
		{"email", func(p *Payload) { p.ClientEmail = ptr("not-an-email") }, "client_email", "is_email"},
		{"latitude", func(p *Payload) { p.Latitude = ptr(91.0) }, "latitude", "out_of_range"},
		{"empty title", func(p *Payload) { p.Title = ptr("  ") }, "title", "nil_or_not_empty_required"},
		{"risk factor entry", func(p *Payload) { p.RiskFactors = []string{"slippery", ""} }, "risk_factors.1", "required"},
		{"photo type entry", func(p *Payload) { p.PhotoTypes = []PhotoType{"selfie"} }, "photo_types.0", "in_invalid"},
	}

	v := newTestValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload(t)
			tt.mutate(p)

			res, err := v.Validate(context.Background(), nil, p, execE)
			require.NoError(t, err)
			assert.True(t, res.Has(tt.field, tt.rule), "violations: %+v", res.Violations)
			for _, viol := range res.Violations {
				if viol.Field == tt.field {
					assert.Equal(t, CategoryFormat, viol.Category)
				}
			}
		})
	}
}

func TestValidate_PhoneFormats(t *testing.T) {
	v := newTestValidator(nil)
	for _, phone := range []string{"0123456789", "012-345 6789", "+60123456789", "60111234 5678", "0191234567"} {
		p := validPayload(t)
		p.ClientPhone = ptr(phone)
		res, err := v.Validate(context.Background(), nil, p, execE)
		require.NoError(t, err)
		assert.False(t, res.Has("client_phone", "match_invalid"), phone)
	}
}

func TestValidate_DateWindow(t *testing.T) {
	v := newTestValidator(nil)
	ctx := context.Background()

	t.Run("past date on create", func(t *testing.T) {
		p := validPayload(t)
		p.AssessmentDate = ptr(mustDate(t, "2025-04-30"))
		res, err := v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		assert.True(t, res.Has("assessment_date", "date_in_past"))
	})

	t.Run("today is allowed", func(t *testing.T) {
		p := validPayload(t)
		p.AssessmentDate = ptr(mustDate(t, "2025-05-01"))
		res, err := v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		assert.True(t, res.Valid(), res.Violations)
	})

	t.Run("more than six months ahead", func(t *testing.T) {
		p := validPayload(t)
		p.AssessmentDate = ptr(mustDate(t, "2025-11-02"))
		res, err := v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		assert.True(t, res.Has("assessment_date", "date_too_far"))
	})

	t.Run("completed assessments may be past dated", func(t *testing.T) {
		existing := storedAssessment(t, StatusCompleted)
		res, err := v.Validate(ctx, existing, &Payload{AssessmentDate: ptr(mustDate(t, "2025-03-01"))}, manager)
		require.NoError(t, err)
		assert.False(t, res.Has("assessment_date", "date_in_past"))
	})

	t.Run("active assessments may not", func(t *testing.T) {
		existing := storedAssessment(t, StatusScheduled)
		res, err := v.Validate(ctx, existing, &Payload{AssessmentDate: ptr(mustDate(t, "2025-03-01"))}, manager)
		require.NoError(t, err)
		assert.True(t, res.Has("assessment_date", "date_in_past"))
	})
}

func TestValidate_CompletionConsistency(t *testing.T) {
	v := newTestValidator(nil)
	ctx := context.Background()

	t.Run("completed with 80 percent", func(t *testing.T) {
		res, err := v.Validate(ctx, storedAssessment(t, StatusInProgress), &Payload{
			Status:               ptr(StatusCompleted),
			CompletionPercentage: ptr(80),
		}, execE)
		require.NoError(t, err)
		assert.True(t, res.Has("completion_percentage", "completion_mismatch"))
		assert.Equal(t, []Category{CategoryCrossField}, res.Categories())
	})

	t.Run("completed without a value becomes 100", func(t *testing.T) {
		res, err := v.Validate(ctx, storedAssessment(t, StatusInProgress), &Payload{
			Status: ptr(StatusCompleted),
		}, execE)
		require.NoError(t, err)
		assert.True(t, res.Valid(), res.Violations)
		assert.Equal(t, 100, *res.Payload.CompletionPercentage)
	})

	t.Run("in progress at 100", func(t *testing.T) {
		res, err := v.Validate(ctx, storedAssessment(t, StatusInProgress), &Payload{
			CompletionPercentage: ptr(100),
		}, execE)
		require.NoError(t, err)
		assert.True(t, res.Has("completion_percentage", "completion_mismatch"))
	})

	t.Run("100 requires completed", func(t *testing.T) {
		p := validPayload(t)
		p.CompletionPercentage = ptr(100)
		res, err := v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		assert.True(t, res.Has("completion_percentage", "completion_mismatch"))
	})
}

func TestValidate_StatusTransitions(t *testing.T) {
	v := newTestValidator(nil)
	ctx := context.Background()

	res, err := v.Validate(ctx, storedAssessment(t, StatusDraft), &Payload{Status: ptr(StatusCompleted)}, execE)
	require.NoError(t, err)
	assert.True(t, res.Has("status", "invalid_transition"))
	assert.Contains(t, res.Fields()["status"][0], "from draft to completed")
	assert.Contains(t, res.Fields()["status"][0], "allowed: scheduled, cancelled")

	res, err = v.Validate(ctx, storedAssessment(t, StatusScheduled), &Payload{Status: ptr(StatusScheduled)}, execE)
	require.NoError(t, err)
	assert.True(t, res.Valid(), res.Violations)

	p := validPayload(t)
	p.Status = ptr(StatusScheduled)
	res, err = v.Validate(ctx, nil, p, execE)
	require.NoError(t, err)
	assert.True(t, res.Has("status", "initial_status"))
}

func TestValidate_TerminalLock(t *testing.T) {
	v := newTestValidator(nil)

	res, err := v.Validate(context.Background(), storedAssessment(t, StatusCompleted), &Payload{
		Title:  ptr("Renamed"),
		Notes:  ptr("Client signed off"),
		Status: ptr(StatusCompleted),
	}, manager)
	require.NoError(t, err)

	assert.True(t, res.Has("title", "terminal_immutable"))
	assert.False(t, res.Has("notes", "terminal_immutable"))
	assert.False(t, res.Has("status", "invalid_transition"))
	assert.Len(t, res.Violations, 1)
}

func TestValidate_AreaUnit(t *testing.T) {
	v := newTestValidator(nil)
	ctx := context.Background()

	p := validPayload(t)
	p.TotalArea = ptr(120.5)
	res, err := v.Validate(ctx, nil, p, execE)
	require.NoError(t, err)
	assert.True(t, res.Has("area_unit", "required_with"))

	p = validPayload(t)
	p.AreaUnit = ptr(AreaSquareFeet)
	res, err = v.Validate(ctx, nil, p, execE)
	require.NoError(t, err)
	assert.True(t, res.Has("area_unit", "prohibited_without"))

	p.TotalArea = ptr(120.5)
	res, err = v.Validate(ctx, nil, p, execE)
	require.NoError(t, err)
	assert.True(t, res.Valid(), res.Violations)
}

func TestValidate_FollowUp(t *testing.T) {
	v := newTestValidator(nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		required *bool
		date     string
		rule     string
	}{
		{"required without date", ptr(true), "", "required_with"},
		{"date today", ptr(true), "2025-05-01", "date_not_future"},
		{"date without flag", nil, "2025-05-20", "prohibited_without"},
		{"valid", ptr(true), "2025-05-20", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload(t)
			p.FollowUpRequired = tt.required
			if tt.date != "" {
				p.FollowUpDate = ptr(mustDate(t, tt.date))
			}
			res, err := v.Validate(ctx, nil, p, execE)
			require.NoError(t, err)
			if tt.rule == "" {
				assert.True(t, res.Valid(), res.Violations)
				return
			}
			assert.True(t, res.Has("follow_up_date", tt.rule), res.Violations)
		})
	}

	t.Run("clearing the flag clears the date", func(t *testing.T) {
		existing := storedAssessment(t, StatusScheduled)
		existing.FollowUpRequired = true
		existing.FollowUpDate = ptr(mustDate(t, "2025-05-20"))

		res, err := v.Validate(ctx, existing, &Payload{FollowUpRequired: ptr(false)}, execE)
		require.NoError(t, err)
		assert.True(t, res.Valid(), res.Violations)
		assert.Nil(t, res.Payload.ApplyTo(existing).FollowUpDate)
	})
}

func TestValidate_ServiceTypeRules(t *testing.T) {
	v := newTestValidator(nil)
	ctx := context.Background()

	t.Run("industrial high risk needs compliance photos", func(t *testing.T) {
		p := validPayload(t)
		p.ServiceType = ptr(ServiceIndustrial)
		p.OverallRiskScore = ptr(8)
		p.SafetyConcerns = ptr("Exposed live wiring")
		p.SpecialRequirements = ptr("Lockout tagout")
		p.PhotoTypes = []PhotoType{PhotoSafety}

		res, err := v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		require.True(t, res.Has("photo_types", "photo_required"))
		assert.Contains(t, res.Fields()["photo_types"][0], "compliance")
		assert.Equal(t, []Category{CategoryBusinessRule}, res.Categories())

		p.PhotoTypes = append(p.PhotoTypes, PhotoCompliance)
		res, err = v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		assert.True(t, res.Valid(), res.Violations)
	})

	t.Run("industrial counts stored photos", func(t *testing.T) {
		existing := storedAssessment(t, StatusInProgress)
		existing.ServiceType = ServiceIndustrial
		existing.SafetyConcerns = "Fumes"
		existing.SpecialRequirements = "Respirators"
		existing.Photos = []Photo{{PhotoType: PhotoSafety}, {PhotoType: PhotoCompliance}}

		res, err := v.Validate(ctx, existing, &Payload{OverallRiskScore: ptr(9)}, execE)
		require.NoError(t, err)
		assert.True(t, res.Valid(), res.Violations)
	})

	t.Run("industrial requirements", func(t *testing.T) {
		p := validPayload(t)
		p.ServiceType = ptr(ServiceIndustrial)
		res, err := v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		assert.True(t, res.Has("safety_concerns", "service_requires"))
		assert.True(t, res.Has("overall_risk_score", "service_requires"))
		assert.True(t, res.Has("photo_types", "photo_required"))
	})

	t.Run("waterproofing emergency", func(t *testing.T) {
		p := validPayload(t)
		p.ServiceType = ptr(ServiceWaterproofing)
		p.Urgency = ptr(UrgencyEmergency)
		p.OverallRiskScore = ptr(7)
		res, err := v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		assert.True(t, res.Has("total_area", "service_requires"))
		assert.True(t, res.Has("safety_concerns", "service_requires"))
		assert.True(t, res.Has("photo_types", "photo_required"))
	})

	t.Run("painting", func(t *testing.T) {
		p := validPayload(t)
		p.ServiceType = ptr(ServicePainting)
		p.TotalArea = ptr(12000.0)
		p.AreaUnit = ptr(AreaSquareFeet)
		res, err := v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		assert.True(t, res.Has("special_requirements", "service_requires"))
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, "photo_recommended", res.Warnings[0].Rule)

		p.TotalArea = ptr(1500.0)
		res, err = v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		assert.True(t, res.Valid(), res.Violations)
		assert.Len(t, res.Warnings, 1)
	})

	t.Run("sports court", func(t *testing.T) {
		p := validPayload(t)
		p.ServiceType = ptr(ServiceSportsCourt)
		p.PhotoTypes = []PhotoType{PhotoMeasurement}
		res, err := v.Validate(ctx, nil, p, execE)
		require.NoError(t, err)
		assert.True(t, res.Has("total_area", "service_requires"))
		assert.True(t, res.Has("access_restrictions", "service_requires"))
		assert.Empty(t, res.Warnings)
	})

	t.Run("unrelated update skips service rules", func(t *testing.T) {
		existing := storedAssessment(t, StatusScheduled)
		existing.ServiceType = ServiceIndustrial
		res, err := v.Validate(ctx, existing, &Payload{Description: ptr("Updated scope")}, execE)
		require.NoError(t, err)
		assert.True(t, res.Valid(), res.Violations)
	})
}

func TestValidate_DuplicateBooking(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	first := storedAssessment(t, StatusScheduled)
	require.NoError(t, repo.Create(ctx, first))

	v := newTestValidator(repo)

	p := validPayload(t)
	p.LocationAddress = ptr("123  main ST ")
	res, err := v.Validate(ctx, nil, p, execE)
	require.NoError(t, err)
	require.True(t, res.Has("assessment_date", "duplicate_booking"))
	assert.Equal(t, []Category{CategoryConflict}, res.Categories())

	t.Run("other company is not a conflict", func(t *testing.T) {
		res, err := v.Validate(ctx, nil, validPayload(t), outsider)
		require.NoError(t, err)
		assert.True(t, res.Valid(), res.Violations)
	})

	t.Run("updating self is not a conflict", func(t *testing.T) {
		stored, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		res, err := v.Validate(ctx, stored, &Payload{AssessmentDate: ptr(mustDate(t, "2025-06-01"))}, execE)
		require.NoError(t, err)
		assert.True(t, res.Valid(), res.Violations)
	})

	t.Run("cancelled bookings do not conflict", func(t *testing.T) {
		cancelled, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		cancelled.Status = StatusCancelled
		require.NoError(t, repo.Update(ctx, cancelled))

		res, err := v.Validate(ctx, nil, validPayload(t), execE)
		require.NoError(t, err)
		assert.True(t, res.Valid(), res.Violations)
	})

	t.Run("lookup failure is an error", func(t *testing.T) {
		_, err := newTestValidator(failingBookings{}).Validate(ctx, nil, validPayload(t), execE)
		assert.ErrorContains(t, err, "failed to check booking conflicts")
	})
}

func TestValidate_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	v := newTestValidator(repo)

	p := validPayload(t)
	p.TotalArea = ptr(80.0)
	p.AreaUnit = ptr(AreaSquareMeter)
	p.FollowUpRequired = ptr(true)
	p.FollowUpDate = ptr(mustDate(t, "2025-05-15"))

	res, err := v.Validate(ctx, nil, p, execE)
	require.NoError(t, err)
	require.True(t, res.Valid(), res.Violations)

	created := res.Payload.ApplyTo(&Assessment{CompanyID: execE.CompanyID, Status: StatusDraft})
	require.NoError(t, repo.Create(ctx, created))
	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)

	again, err := v.Validate(ctx, stored, p, execE)
	require.NoError(t, err)
	assert.True(t, again.Valid(), again.Violations)
	assert.Equal(t, "0123456789", stored.ClientPhone)
	assert.Equal(t, StatusDraft, stored.Status)
}
