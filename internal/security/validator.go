package security

import (
	"math"
	"regexp"
	"strings"

	"digistore/internal/model"
)

const (
	maxEmailLength = 254
	minNameLength  = 2
	maxNameLength  = 100

	// MaxAmount is the largest single payment accepted, in naira.
	MaxAmount = 10_000_000
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^(\+234|0)[789]\d{9}$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	whitespace   = regexp.MustCompile(`\s`)

	scriptBlock  = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)
	htmlTag      = regexp.MustCompile(`<[^>]*>`)
	jsScheme     = regexp.MustCompile(`(?i)javascript:`)
	eventHandler = regexp.MustCompile(`(?i)on\w+\s*=`)
)

// ValidationResult holds the outcome of validating a single field.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// SanitizedInput holds cleaned text and whether cleaning changed it.
type SanitizedInput struct {
	Value       string `json:"value"`
	WasModified bool   `json:"wasModified"`
}

func result(errs []string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateEmail checks presence, shape and length of an email address.
func ValidateEmail(email string) ValidationResult {
	var errs []string

	if strings.TrimSpace(email) == "" {
		return result(append(errs, "Email is required"))
	}
	if !emailPattern.MatchString(email) {
		errs = append(errs, "Invalid email format")
	}
	if len(email) > maxEmailLength {
		errs = append(errs, "Email is too long")
	}

	return result(errs)
}

// ValidatePhone checks for a Nigerian mobile number once whitespace is removed.
func ValidatePhone(phone string) ValidationResult {
	var errs []string

	if strings.TrimSpace(phone) == "" {
		return result(append(errs, "Phone number is required"))
	}
	if !phonePattern.MatchString(whitespace.ReplaceAllString(phone, "")) {
		errs = append(errs, "Invalid Nigerian phone number format")
	}

	return result(errs)
}

// ValidateName checks length and character set of a customer name.
func ValidateName(name string) ValidationResult {
	var errs []string

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return result(append(errs, "Name is required"))
	}
	if len(trimmed) < minNameLength {
		errs = append(errs, "Name must be at least 2 characters")
	}
	if len(name) > maxNameLength {
		errs = append(errs, "Name is too long")
	}
	if !namePattern.MatchString(name) {
		errs = append(errs, "Name contains invalid characters")
	}

	return result(errs)
}

// ValidateAmount checks that a payment amount is a positive whole number
// within the per-payment ceiling.
func ValidateAmount(amount float64) ValidationResult {
	var errs []string

	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return result(append(errs, "Amount must be a number"))
	}
	if amount <= 0 {
		errs = append(errs, "Amount must be greater than 0")
	}
	if amount > MaxAmount {
		errs = append(errs, "Amount exceeds maximum limit")
	}
	if amount != math.Trunc(amount) {
		errs = append(errs, "Amount must be a whole number")
	}

	return result(errs)
}

// SanitizeInput strips script blocks, HTML tags, javascript: URIs and inline
// event handlers, then trims surrounding whitespace.
func SanitizeInput(input string) SanitizedInput {
	sanitized := scriptBlock.ReplaceAllString(input, "")
	sanitized = htmlTag.ReplaceAllString(sanitized, "")
	sanitized = jsScheme.ReplaceAllString(sanitized, "")
	sanitized = eventHandler.ReplaceAllString(sanitized, "")
	sanitized = strings.TrimSpace(sanitized)

	return SanitizedInput{
		Value:       sanitized,
		WasModified: sanitized != input,
	}
}

// ValidateCustomer sanitizes and validates every checkout field.
// It returns the cleaned customer details, or a *model.ValidationError listing
// all errors for every failing field.
func ValidateCustomer(info model.CustomerInfo) (model.CustomerInfo, error) {
	clean := model.CustomerInfo{
		Name:  SanitizeInput(info.Name).Value,
		Email: SanitizeInput(info.Email).Value,
		Phone: SanitizeInput(info.Phone).Value,
	}

	fields := map[string][]string{}
	if r := ValidateName(clean.Name); !r.IsValid {
		fields["customerName"] = r.Errors
	}
	if r := ValidateEmail(clean.Email); !r.IsValid {
		fields["customerEmail"] = r.Errors
	}
	if r := ValidatePhone(clean.Phone); !r.IsValid {
		fields["customerPhone"] = r.Errors
	}

	if len(fields) > 0 {
		return clean, &model.ValidationError{Fields: fields}
	}
	return clean, nil
}

// ValidateProduct checks that a catalogue entry has the fields needed to sell it.
func ValidateProduct(p model.Product) ValidationResult {
	var errs []string

	if p.ID == "" {
		errs = append(errs, "id is required")
	}
	if p.Name == "" {
		errs = append(errs, "name is required")
	}
	if p.Category == "" {
		errs = append(errs, "category is required")
	}
	if p.Description == "" {
		errs = append(errs, "description is required")
	}
	if p.Price == 0 {
		errs = append(errs, "price is required")
	} else if r := ValidateAmount(float64(p.Price)); !r.IsValid {
		errs = append(errs, r.Errors...)
	}

	return result(errs)
}
