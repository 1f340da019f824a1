package validation

import (
	"testing"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  Jeju  ", "Jeju"},
		{"drops control characters", "Bu\x00san\x07", "Busan"},
		{"keeps newline and tab", "line1\n\tline2", "line1\n\tline2"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeText(tt.in); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeTags(t *testing.T) {
	t.Parallel()

	got := SanitizeTags([]string{" hiking ", "", "\x00", "food"})
	if len(got) != 2 || got[0] != "hiking" || got[1] != "food" {
		t.Errorf("SanitizeTags() = %v", got)
	}
}

func TestPlanRequestTags(t *testing.T) {
	t.Parallel()

	type request struct {
		Title     string `validate:"required"`
		Status    string `validate:"omitempty,plan_status"`
		StartTime string `validate:"omitempty,hhmm"`
		Sort      string `validate:"omitempty,sort_field"`
		Date      string `validate:"omitempty,calendar_date"`
	}

	tests := []struct {
		name    string
		req     request
		wantErr bool
	}{
		{"valid", request{Title: "a", Status: "active", StartTime: "23:59", Sort: "startDate", Date: "2024-04-15"}, false},
		{"missing title", request{}, true},
		{"bad status", request{Title: "a", Status: "done"}, true},
		{"bad clock hour", request{Title: "a", StartTime: "24:00"}, true},
		{"clock without padding", request{Title: "a", StartTime: "9:00"}, true},
		{"bad sort", request{Title: "a", Sort: "priority"}, true},
		{"bad date", request{Title: "a", Date: "15/04/2024"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate.Struct(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate.Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEnums(t *testing.T) {
	t.Parallel()

	if err := ValidatePlanStatus("archived"); err != nil {
		t.Errorf("ValidatePlanStatus(archived) = %v", err)
	}
	if err := ValidatePlanStatus("pending"); err == nil {
		t.Error("Expected error for unknown status")
	}
	if err := ValidateSortDirection("desc"); err != nil {
		t.Errorf("ValidateSortDirection(desc) = %v", err)
	}
	if err := ValidateSortDirection("up"); err == nil {
		t.Error("Expected error for unknown direction")
	}
}
