package request

import (
	"errors"
	"testing"

	"github.com/solenne-labs/tendex/internal/domain"
)

func TestNew_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		limit    int
		minScore float64
		wantErr  bool
	}{
		{"valid", "platform citizen services", 5, 0.5, false},
		{"empty query", "", 5, 0.5, true},
		{"whitespace query", "   \t ", 5, 0.5, true},
		{"limit zero", "q", 0, 0.5, true},
		{"limit above max", "q", 101, 0.5, true},
		{"limit at min", "q", 1, 0.5, false},
		{"limit at max", "q", 100, 0.5, false},
		{"min score below zero", "q", 5, -0.01, true},
		{"min score above one", "q", 5, 1.01, true},
		{"min score at zero", "q", 5, 0.0, false},
		{"min score at one", "q", 5, 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.query, tt.limit, tt.minScore, nil, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNew_TrimsQuery(t *testing.T) {
	req, err := New("  digital services  ", 5, 0.5, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Query() != "digital services" {
		t.Errorf("Query() = %q, want trimmed", req.Query())
	}
}

func TestNew_ValidationErrorNamesField(t *testing.T) {
	_, err := New("q", 101, 0.5, nil, nil)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *domain.ValidationError, got %T", err)
	}
	if ve.Field != "limit" {
		t.Errorf("Field = %q, want %q", ve.Field, "limit")
	}
	if ve.Value != 101 {
		t.Errorf("Value = %v, want 101", ve.Value)
	}
}
