package registration

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// ValidCountryCode is registered as the "countrycode" validation tag.
func ValidCountryCode(fl validator.FieldLevel) bool {
	return countryCodePattern.MatchString(fl.Field().String())
}

// FieldError is a single failed rule on a request field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// Validate checks the fields carried by a partial update against the same rules
// CreateRequest enforces. Absent and explicit null fields are left out; Apply
// ignores both, so a null never clears a column.
func (req UpdateRequest) Validate(v *validator.Validate) []FieldError {
	var out []FieldError

	check := func(field string, value any, tag string) {
		err := v.Var(value, tag)
		if err == nil {
			return
		}

		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			out = append(out, FieldError{Field: field, Rule: tag, Message: err.Error()})
			return
		}

		for _, fe := range verrs {
			out = append(out, FieldError{Field: field, Rule: fe.Tag(), Param: fe.Param()})
		}
	}

	if s, ok := req.FirstName.Get(); ok {
		check("firstName", s, "required,max=50")
	}
	if s, ok := req.LastName.Get(); ok {
		check("lastName", s, "required,max=50")
	}
	if s, ok := req.Email.Get(); ok {
		check("email", s, "required,email")
	}
	if n, ok := req.Age.Get(); ok {
		check("age", n, "min=0,max=150")
	}
	if s, ok := req.CountryCode.Get(); ok {
		check("countryCode", s, "required,countrycode")
	}

	return out
}
