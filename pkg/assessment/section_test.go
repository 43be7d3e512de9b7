package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionParent(t *testing.T) *Assessment {
	a := storedAssessment(t, StatusInProgress)
	a.Sections = []Section{
		{ID: 1, AssessmentID: a.ID, Name: "Roof", Status: SectionCompleted, SortOrder: 1, SectionType: SectionRoof},
		{ID: 2, AssessmentID: a.ID, Name: "Walls", Status: SectionPending, SortOrder: 2, SectionType: SectionWall, Dependencies: []int64{1}},
		{ID: 3, AssessmentID: a.ID, Name: "Drainage", Status: SectionPending, SortOrder: 3, SectionType: SectionDrainage, Dependencies: []int64{2}, IsRequired: true},
	}
	return a
}

func TestValidateSection_Create(t *testing.T) {
	v := newTestValidator(nil)
	parent := sectionParent(t)

	res := v.ValidateSection(parent, nil, &SectionPayload{
		Name:         ptr("Foundation"),
		SectionType:  ptr(SectionFoundation),
		SortOrder:    ptr(4),
		Dependencies: []int64{1, 2},
	})
	assert.True(t, res.Valid(), res.Violations)

	res = v.ValidateSection(parent, nil, &SectionPayload{Name: ptr("  ")})
	assert.True(t, res.Has("name", "required"))
}

func TestValidateSection_FormatRules(t *testing.T) {
	v := newTestValidator(nil)
	parent := sectionParent(t)

	res := v.ValidateSection(parent, nil, &SectionPayload{
		Name:          ptr("Basement"),
		SectionType:   ptr(SectionType("attic")),
		Status:        ptr(SectionStatus("done")),
		SortOrder:     ptr(10001),
		QualityRating: ptr(QualityRating("superb")),
	})
	assert.True(t, res.Has("section_type", "in_invalid"))
	assert.True(t, res.Has("status", "in_invalid"))
	assert.True(t, res.Has("sort_order", "out_of_range"))
	assert.True(t, res.Has("quality_rating", "in_invalid"))
}

func TestValidateSection_SortOrderConflict(t *testing.T) {
	v := newTestValidator(nil)
	parent := sectionParent(t)

	res := v.ValidateSection(parent, nil, &SectionPayload{Name: ptr("Gutters"), SortOrder: ptr(2)})
	require.True(t, res.Has("sort_order", "duplicate_sort_order"))
	assert.Equal(t, []Category{CategoryConflict}, res.Categories())
	assert.Contains(t, res.Fields()["sort_order"][0], "Walls")

	// keeping its own sort order is fine
	walls, _ := parent.Section(2)
	res = v.ValidateSection(parent, walls, &SectionPayload{SortOrder: ptr(2)})
	assert.True(t, res.Valid(), res.Violations)
}

func TestValidateSection_Dependencies(t *testing.T) {
	v := newTestValidator(nil)

	t.Run("self", func(t *testing.T) {
		parent := sectionParent(t)
		walls, _ := parent.Section(2)
		res := v.ValidateSection(parent, walls, &SectionPayload{Dependencies: []int64{2}})
		assert.True(t, res.Has("dependencies.0", "self_dependency"))
	})

	t.Run("duplicate", func(t *testing.T) {
		parent := sectionParent(t)
		res := v.ValidateSection(parent, nil, &SectionPayload{Name: ptr("Paint"), Dependencies: []int64{1, 1}})
		assert.True(t, res.Has("dependencies.1", "duplicate_dependency"))
	})

	t.Run("foreign", func(t *testing.T) {
		parent := sectionParent(t)
		res := v.ValidateSection(parent, nil, &SectionPayload{Name: ptr("Paint"), Dependencies: []int64{99}})
		assert.True(t, res.Has("dependencies.0", "foreign_dependency"))
	})

	t.Run("cycle", func(t *testing.T) {
		parent := sectionParent(t)
		roof, _ := parent.Section(1)
		res := v.ValidateSection(parent, roof, &SectionPayload{Dependencies: []int64{3}})
		require.True(t, res.Has("dependencies", "circular_dependency"), res.Violations)
		assert.Contains(t, res.Fields()["dependencies"][0], "1 -> 3 -> 2 -> 1")
	})
}

func TestValidateSection_StatusRules(t *testing.T) {
	v := newTestValidator(nil)

	t.Run("dependencies incomplete", func(t *testing.T) {
		parent := sectionParent(t)
		drainage, _ := parent.Section(3)
		res := v.ValidateSection(parent, drainage, &SectionPayload{Status: ptr(SectionCompleted)})
		require.True(t, res.Has("status", "dependencies_incomplete"))
		assert.Contains(t, res.Fields()["status"][0], `"Walls"`)
	})

	t.Run("completed dependency", func(t *testing.T) {
		parent := sectionParent(t)
		walls, _ := parent.Section(2)
		res := v.ValidateSection(parent, walls, &SectionPayload{Status: ptr(SectionCompleted)})
		assert.True(t, res.Valid(), res.Violations)
	})

	t.Run("required not skippable", func(t *testing.T) {
		parent := sectionParent(t)
		drainage, _ := parent.Section(3)
		res := v.ValidateSection(parent, drainage, &SectionPayload{Status: ptr(SectionSkipped)})
		assert.True(t, res.Has("status", "required_not_skippable"))

		walls, _ := parent.Section(2)
		res = v.ValidateSection(parent, walls, &SectionPayload{Status: ptr(SectionSkipped)})
		assert.True(t, res.Valid(), res.Violations)
	})
}

func TestValidateSection_Scores(t *testing.T) {
	v := newTestValidator(nil)
	parent := sectionParent(t)
	walls, _ := parent.Section(2)
	walls.CurrentScore = ptr(40.0)
	walls.MaxScore = ptr(50.0)

	res := v.ValidateSection(parent, walls, &SectionPayload{CurrentScore: ptr(60.0)})
	assert.True(t, res.Has("current_score", "score_exceeds_max"))
	assert.False(t, res.Has("max_score", "score_below_current"))

	res = v.ValidateSection(parent, walls, &SectionPayload{MaxScore: ptr(30.0)})
	assert.True(t, res.Has("max_score", "score_below_current"))
	assert.False(t, res.Has("current_score", "score_exceeds_max"))

	res = v.ValidateSection(parent, walls, &SectionPayload{CurrentScore: ptr(-1.0), MaxScore: ptr(0.0)})
	assert.True(t, res.Has("current_score", "out_of_range"))
	assert.True(t, res.Has("max_score", "out_of_range"))
}

func TestValidateSection_QualityRating(t *testing.T) {
	v := newTestValidator(nil)
	parent := sectionParent(t)
	walls, _ := parent.Section(2)

	res := v.ValidateSection(parent, walls, &SectionPayload{
		Status:        ptr(SectionCompleted),
		CurrentScore:  ptr(70.0),
		MaxScore:      ptr(100.0),
		QualityRating: ptr(RatingExcellent),
	})
	require.True(t, res.Has("quality_rating", "rating_mismatch"))
	assert.Contains(t, res.Fields()["quality_rating"][0], "expected fair")

	res = v.ValidateSection(parent, walls, &SectionPayload{
		Status:        ptr(SectionCompleted),
		CurrentScore:  ptr(70.0),
		MaxScore:      ptr(100.0),
		QualityRating: ptr(RatingFair),
	})
	assert.True(t, res.Valid(), res.Violations)
}

func TestExpectedRating(t *testing.T) {
	tests := map[float64]QualityRating{
		100: RatingExcellent,
		90:  RatingExcellent,
		89:  RatingGood,
		75:  RatingGood,
		60:  RatingFair,
		40:  RatingPoor,
		39:  RatingCritical,
	}
	for pct, want := range tests {
		assert.Equal(t, want, ExpectedRating(pct), pct)
	}
}

func TestSectionDependents(t *testing.T) {
	parent := sectionParent(t)
	assert.Equal(t, []string{"Walls"}, SectionDependents(parent, 1))
	assert.Empty(t, SectionDependents(parent, 3))
}
