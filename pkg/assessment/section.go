package assessment

import (
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// newSectionID stands in for the id of a section that is not stored yet
const newSectionID int64 = 0

// ValidateSection checks a section create (existing nil) or update against its
// parent assessment and sibling sections
func (v *Validator) ValidateSection(parent *Assessment, existing *Section, p *SectionPayload) *Result {
	result := &Result{}
	creating := existing == nil

	base := Section{AssessmentID: parent.ID}
	if existing != nil {
		base = *existing
	}
	merged := p.ApplyTo(base)
	touched := func(fields ...bool) bool {
		if creating {
			return true
		}
		for _, f := range fields {
			if f {
				return true
			}
		}
		return false
	}

	// static rules
	if creating && (p.Name == nil || strings.TrimSpace(*p.Name) == "") {
		result.addError("name", "required", CategoryFormat, "name is required")
	}
	err := validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Length(0, maxNameLength)),
		validation.Field(&p.Description, validation.Length(0, maxTextLength)),
		validation.Field(&p.SectionType, validation.In(
			SectionRoof, SectionWall, SectionFloor, SectionFoundation, SectionStructural,
			SectionDrainage, SectionSurface, SectionElectrical, SectionSafety, SectionGeneral)),
		validation.Field(&p.Status, validation.In(SectionPending, SectionInProgress, SectionCompleted, SectionSkipped)),
		validation.Field(&p.SortOrder, intBetween(0, 10000)),
		validation.Field(&p.QualityRating, validation.In(RatingExcellent, RatingGood, RatingFair, RatingPoor, RatingCritical)),
		validation.Field(&p.Notes, validation.Length(0, maxTextLength)),
	)
	collectOzzoErrors(err, "", CategoryFormat, result)

	// scores
	if p.CurrentScore != nil && *p.CurrentScore < 0 {
		result.addError("current_score", "out_of_range", CategoryFormat, "current_score must not be negative")
	}
	if p.MaxScore != nil && *p.MaxScore <= 0 {
		result.addError("max_score", "out_of_range", CategoryFormat, "max_score must be greater than 0")
	}
	if touched(p.CurrentScore != nil, p.MaxScore != nil) &&
		merged.CurrentScore != nil && merged.MaxScore != nil && *merged.CurrentScore > *merged.MaxScore {
		if p.CurrentScore != nil {
			result.addError("current_score", "score_exceeds_max", CategoryCrossField,
				"current_score must be less than or equal to max_score")
		}
		if p.MaxScore != nil {
			result.addError("max_score", "score_below_current", CategoryCrossField,
				"max_score must be greater than or equal to current_score")
		}
	}

	siblings := make([]Section, 0, len(parent.Sections))
	for _, s := range parent.Sections {
		if existing == nil || s.ID != existing.ID {
			siblings = append(siblings, s)
		}
	}

	if p.SortOrder != nil {
		for _, s := range siblings {
			if s.SortOrder == *p.SortOrder {
				result.addError("sort_order", "duplicate_sort_order", CategoryConflict,
					"sort_order %d is already used by section %q", s.SortOrder, s.Name)
				break
			}
		}
	}

	selfID := newSectionID
	if existing != nil {
		selfID = existing.ID
	}
	if p.Dependencies != nil {
		validateDependencies(parent, siblings, selfID, p.Dependencies, result)
	}

	if touched(p.Status != nil, p.Dependencies != nil) && merged.Status == SectionCompleted {
		var blocking []string
		for _, depID := range merged.Dependencies {
			if dep, ok := findSection(siblings, depID); ok && dep.Status != SectionCompleted {
				blocking = append(blocking, fmt.Sprintf("%q", dep.Name))
			}
		}
		if len(blocking) > 0 {
			result.addError("status", "dependencies_incomplete", CategoryBusinessRule,
				"section cannot be completed before %s", strings.Join(blocking, ", "))
		}
	}

	if touched(p.Status != nil, p.IsRequired != nil) && merged.IsRequired && merged.Status == SectionSkipped {
		result.addError("status", "required_not_skippable", CategoryBusinessRule,
			"required sections cannot be skipped")
	}

	if touched(p.Status != nil, p.CurrentScore != nil, p.MaxScore != nil, p.QualityRating != nil) &&
		merged.Status == SectionCompleted && merged.QualityRating != "" &&
		merged.CurrentScore != nil && merged.MaxScore != nil && *merged.MaxScore > 0 {
		pct := *merged.CurrentScore / *merged.MaxScore * 100
		if expected := ExpectedRating(pct); merged.QualityRating != expected {
			result.addError("quality_rating", "rating_mismatch", CategoryCrossField,
				"quality_rating %s does not match a score of %.1f%% (expected %s)", merged.QualityRating, pct, expected)
		}
	}

	return result
}

func validateDependencies(parent *Assessment, siblings []Section, selfID int64, deps []int64, result *Result) {
	seen := make(map[int64]bool)
	for i, depID := range deps {
		field := fmt.Sprintf("dependencies.%d", i)
		switch {
		case selfID != newSectionID && depID == selfID:
			result.addError(field, "self_dependency", CategoryBusinessRule, "a section cannot depend on itself")
		case seen[depID]:
			result.addError(field, "duplicate_dependency", CategoryFormat, "section %d is listed more than once", depID)
		default:
			if _, ok := findSection(siblings, depID); !ok {
				result.addError(field, "foreign_dependency", CategoryBusinessRule,
					"section %d does not belong to assessment %d", depID, parent.ID)
			}
		}
		seen[depID] = true
	}

	if selfID == newSectionID {
		// nothing can depend on a section that does not exist yet
		return
	}
	g := newDependencyGraph(siblings)
	g.set(selfID, deps)
	if cycle := g.findCycle(selfID); cycle != nil {
		ids := make([]string, len(cycle))
		for i, id := range cycle {
			ids[i] = fmt.Sprintf("%d", id)
		}
		result.addError("dependencies", "circular_dependency", CategoryBusinessRule,
			"circular section dependency: %s", strings.Join(ids, " -> "))
	}
}

func findSection(sections []Section, id int64) (Section, bool) {
	for _, s := range sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// SectionDependents returns the names of sections that depend on id, sorted
func SectionDependents(parent *Assessment, id int64) []string {
	g := newDependencyGraph(parent.Sections)
	var names []string
	for _, depID := range g.dependents(id) {
		if s, ok := parent.Section(depID); ok {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names
}
