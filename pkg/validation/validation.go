package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/vinodismyname/sidpol/pkg/pagination"
)

var (
	v    *validator.Validate
	once sync.Once
)

// AggregateKinds lists the aggregate views exposed by the tools and the HTTP API.
var AggregateKinds = []string{"modality", "month", "department", "province", "modality_month", "department_modality"}

// GrowthAxes lists accepted growth axes including the Spanish aliases.
var GrowthAxes = []string{"year", "month", "modality", "anio", "año", "mes", "modalidad"}

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		// Calendar month
		_ = v.RegisterValidation("month", func(fl validator.FieldLevel) bool {
			m := fl.Field().Int()
			return m >= 1 && m <= 12
		})
		_ = v.RegisterValidation("growth_axis", func(fl validator.FieldLevel) bool {
			return oneOf(fl.Field().String(), GrowthAxes)
		})
		_ = v.RegisterValidation("agg_kind", func(fl validator.FieldLevel) bool {
			return oneOf(fl.Field().String(), AggregateKinds)
		})
		// Source file path must have a supported extension
		_ = v.RegisterValidation("source_ext", func(fl validator.FieldLevel) bool {
			s := strings.ToLower(strings.TrimSpace(fl.Field().String()))
			if s == "" {
				return false
			}
			return strings.HasSuffix(s, ".csv") || strings.HasSuffix(s, ".xlsx") || strings.HasSuffix(s, ".xlsm")
		})
		// Cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			_, err := pagination.DecodeCursor(s)
			return err == nil
		})
	})
	return v
}

func oneOf(s string, allowed []string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "month":
				return fmt.Sprintf("VALIDATION: %s must be a month between 1 and 12", field)
			case "gtefield":
				return "VALIDATION: month range start must not be after its end"
			case "growth_axis":
				return "VALIDATION: axis must be one of year, month, modality (or anio, mes, modalidad)"
			case "agg_kind":
				return "VALIDATION: kind must be one of " + strings.Join(AggregateKinds, ", ")
			case "source_ext":
				return "VALIDATION: path must be a .csv, .xlsx or .xlsm file"
			case "cursor":
				return "CURSOR_INVALID: failed to decode cursor; restart pagination from the first page"
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			}
			return fmt.Sprintf("VALIDATION: invalid %s", field)
		}
		return "VALIDATION: invalid inputs"
	}
	return ""
}
