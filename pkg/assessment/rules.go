package assessment

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	// Malaysian mobile numbers, after spaces and hyphens are stripped
	phonePattern  = regexp.MustCompile(`^(\+?60|0)1[0-46-9][0-9]{7,8}$`)
	postalPattern = regexp.MustCompile(`^\d{5}$`)
)

const (
	maxTitleLength = 255
	maxNameLength  = 255
	maxTextLength  = 5000
	maxRiskFactors = 20
)

// fieldRules applies the static shape, range and format checks
func (v *Validator) fieldRules(in *Input, result *Result) {
	p := in.Payload
	c := v.config

	err := validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.Length(1, maxTitleLength)),
		validation.Field(&p.Description, validation.Length(0, maxTextLength)),
		validation.Field(&p.ServiceType, validation.NilOrNotEmpty,
			validation.In(ServiceWaterproofing, ServicePainting, ServiceSportsCourt, ServiceIndustrial, ServiceGeneral)),
		validation.Field(&p.Status, validation.NilOrNotEmpty, validation.In(statusValues()...)),
		validation.Field(&p.Urgency, validation.In(UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency)),
		validation.Field(&p.EstimatedDuration, intBetween(c.MinDuration, c.MaxDuration)),
		validation.Field(&p.CompletionPercentage, intBetween(0, 100)),
		validation.Field(&p.OverallRiskScore, intBetween(1, 10)),
		validation.Field(&p.TotalArea, floatBetween(c.MinArea, c.MaxArea)),
		validation.Field(&p.AreaUnit, validation.In(AreaSquareFeet, AreaSquareMeter)),
		validation.Field(&p.ClientName, validation.NilOrNotEmpty, validation.Length(1, maxNameLength)),
		validation.Field(&p.ClientPhone, validation.Match(phonePattern).
			Error("client_phone must be a valid Malaysian mobile number")),
		validation.Field(&p.ClientEmail, is.EmailFormat, validation.Length(0, maxNameLength)),
		validation.Field(&p.LocationAddress, validation.NilOrNotEmpty, validation.Length(1, 500)),
		validation.Field(&p.LocationCity, validation.Length(0, 100)),
		validation.Field(&p.LocationState, validation.Length(0, 100)),
		validation.Field(&p.LocationPostalCode, validation.Match(postalPattern).
			Error("location_postal_code must be exactly 5 digits")),
		validation.Field(&p.Latitude, floatBetween(-90, 90)),
		validation.Field(&p.Longitude, floatBetween(-180, 180)),
		validation.Field(&p.SafetyConcerns, validation.Length(0, maxTextLength)),
		validation.Field(&p.SpecialRequirements, validation.Length(0, maxTextLength)),
		validation.Field(&p.AccessRestrictions, validation.Length(0, maxTextLength)),
		validation.Field(&p.RiskFactors, validation.Length(0, maxRiskFactors),
			validation.Each(validation.Required, validation.Length(1, maxNameLength))),
		validation.Field(&p.Notes, validation.Length(0, maxTextLength)),
		validation.Field(&p.Recommendations, validation.Length(0, maxTextLength)),
		validation.Field(&p.PhotoTypes, validation.Each(validation.In(photoTypeValues()...))),
	)
	collectOzzoErrors(err, "", CategoryFormat, result)
}

// collectOzzoErrors flattens ozzo errors into violations keyed by json field.
// Nested errors from Each are addressed as field.index.
func collectOzzoErrors(err error, prefix string, category Category, result *Result) {
	if err == nil {
		return
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		field := strings.TrimSuffix(prefix, ".")
		if field == "" {
			field = "payload"
		}
		result.addError(field, ruleName(err), category, "%s", err.Error())
		return
	}

	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := errs[k]
		var nested validation.Errors
		if errors.As(e, &nested) {
			collectOzzoErrors(nested, prefix+k+".", category, result)
			continue
		}
		result.addError(prefix+k, ruleName(e), category, "%s", e.Error())
	}
}

// ruleName derives a rule name from an ozzo error code, e.g.
// "validation_match_invalid" becomes "match_invalid"
func ruleName(err error) string {
	var verr validation.Error
	if errors.As(err, &verr) {
		return strings.TrimPrefix(verr.Code(), "validation_")
	}
	return "invalid"
}

var (
	errOutOfRange = validation.NewError("validation_out_of_range", "must be between {{.min}} and {{.max}}")
)

// rangeRule checks an optional number against inclusive bounds. Unlike
// validation.Min it also rejects zero values.
type rangeRule struct {
	min, max float64
	format   string
}

func intBetween(min, max int) validation.Rule {
	return rangeRule{min: float64(min), max: float64(max), format: "%.0f"}
}

func floatBetween(min, max float64) validation.Rule {
	return rangeRule{min: min, max: max, format: "%g"}
}

func (r rangeRule) Validate(value interface{}) error {
	var n float64
	switch v := value.(type) {
	case *int:
		if v == nil {
			return nil
		}
		n = float64(*v)
	case *float64:
		if v == nil {
			return nil
		}
		n = *v
	case int:
		n = float64(v)
	case float64:
		n = v
	default:
		return validation.NewInternalError(fmt.Errorf("range rule cannot check %T", value))
	}
	if n < r.min || n > r.max {
		return errOutOfRange.SetParams(map[string]interface{}{
			"min": fmt.Sprintf(r.format, r.min),
			"max": fmt.Sprintf(r.format, r.max),
		})
	}
	return nil
}

func statusValues() []interface{} {
	out := make([]interface{}, len(AllStatuses))
	for i, s := range AllStatuses {
		out[i] = s
	}
	return out
}

func photoTypeValues() []interface{} {
	return []interface{}{
		PhotoGeneral, PhotoOverview, PhotoDetail, PhotoDamage, PhotoMeasurement,
		PhotoSafety, PhotoCompliance, PhotoBefore, PhotoAfter,
	}
}
