package models

import (
	"reflect"
	"testing"
)

func TestSplitOrigins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"blank entries", " , ,", nil},
		{"single", "https://a.example.com", []string{"https://a.example.com"}},
		{"trimmed", "  https://a.com ,  https://b.com  ", []string{"https://a.com", "https://b.com"}},
		{"dedup keeps first", "y, x, y", []string{"y", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SplitOrigins(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCorsConfigOrigins_Nil(t *testing.T) {
	t.Parallel()

	var c *CorsConfig
	if got := c.Origins(); got != nil {
		t.Errorf("Origins() on nil config = %v, want nil", got)
	}
}
