package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/benvon/smart-trips/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums and formats
	if err := Validate.RegisterValidation("plan_status", validatePlanStatus); err != nil {
		panic(fmt.Sprintf("failed to register plan_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("hhmm", validateClock); err != nil {
		panic(fmt.Sprintf("failed to register hhmm validator: %v", err))
	}
	if err := Validate.RegisterValidation("sort_field", validateSortField); err != nil {
		panic(fmt.Sprintf("failed to register sort_field validator: %v", err))
	}
	if err := Validate.RegisterValidation("calendar_date", validateCalendarDate); err != nil {
		panic(fmt.Sprintf("failed to register calendar_date validator: %v", err))
	}
}

// validatePlanStatus validates that a string is a valid PlanStatus enum value
func validatePlanStatus(fl validator.FieldLevel) bool {
	return models.PlanStatus(fl.Field().String()).Valid()
}

// validateClock validates a 24-hour HH:mm time of day
func validateClock(fl validator.FieldLevel) bool {
	return clockPattern.MatchString(fl.Field().String())
}

func validateSortField(fl validator.FieldLevel) bool {
	return ValidateSortField(fl.Field().String()) == nil
}

func validateCalendarDate(fl validator.FieldLevel) bool {
	return ValidateDate(fl.Field().String()) == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// SanitizeTags sanitizes each tag and drops the ones left empty
func SanitizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if s := SanitizeText(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ValidatePlanStatus validates a PlanStatus string value
func ValidatePlanStatus(value string) error {
	if !models.PlanStatus(value).Valid() {
		return fmt.Errorf("invalid status: %s (must be 'draft', 'active', 'completed', 'cancelled', or 'archived')", value)
	}
	return nil
}

// ValidateSortField validates a SortField string value
func ValidateSortField(value string) error {
	switch models.SortField(value) {
	case models.SortByTitle, models.SortByStartDate, models.SortByCreatedAt, models.SortByUpdatedAt:
		return nil
	default:
		return fmt.Errorf("invalid sort field: %s (must be 'title', 'startDate', 'createdAt', or 'updatedAt')", value)
	}
}

// ValidateSortDirection validates a SortDirection string value
func ValidateSortDirection(value string) error {
	switch models.SortDirection(value) {
	case models.SortAsc, models.SortDesc:
		return nil
	default:
		return fmt.Errorf("invalid sort direction: %s (must be 'asc' or 'desc')", value)
	}
}

// ValidateDate validates a YYYY-MM-DD calendar date
func ValidateDate(value string) error {
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return fmt.Errorf("invalid date: %s (must be YYYY-MM-DD)", value)
	}
	return nil
}
