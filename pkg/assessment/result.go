package assessment

import "fmt"

// Category groups violations for reporting and metrics
type Category string

const (
	CategoryFormat        Category = "format"
	CategoryCrossField    Category = "cross_field"
	CategoryTransition    Category = "transition"
	CategoryBusinessRule  Category = "business_rule"
	CategoryConflict      Category = "conflict"
	CategoryFileIntegrity Category = "file_integrity"
)

// Violation is a single failed rule addressed to a request field
type Violation struct {
	Field    string   `json:"field"`
	Rule     string   `json:"rule"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

// Result accumulates violations and warnings from a validation pass
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
	Warnings   []Violation `json:"warnings,omitempty"`
	// Payload is the normalized request when validating an assessment payload
	Payload *Payload `json:"-"`
}

// Valid reports whether no violations were recorded
func (r *Result) Valid() bool {
	return len(r.Violations) == 0
}

// Err returns a *ValidationFailedError when the result is invalid
func (r *Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationFailedError{Violations: r.Violations}
}

// Fields groups violation messages by field
func (r *Result) Fields() map[string][]string {
	return groupByField(r.Violations)
}

// Categories returns the distinct categories present, in first-seen order
func (r *Result) Categories() []Category {
	var out []Category
	seen := make(map[Category]bool)
	for _, v := range r.Violations {
		if !seen[v.Category] {
			seen[v.Category] = true
			out = append(out, v.Category)
		}
	}
	return out
}

// Has reports whether a violation with the given field and rule was recorded
func (r *Result) Has(field, rule string) bool {
	for _, v := range r.Violations {
		if v.Field == field && v.Rule == rule {
			return true
		}
	}
	return false
}

func (r *Result) addError(field, rule string, category Category, format string, args ...interface{}) {
	r.Violations = append(r.Violations, Violation{
		Field:    field,
		Rule:     rule,
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (r *Result) addWarning(field, rule string, category Category, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Violation{
		Field:    field,
		Rule:     rule,
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	})
}
