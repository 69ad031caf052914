package errors

import (
	"math"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "net1", false},
		{"hierarchical", "top/u1/clk", false},
		{"brackets", "data[3]", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 200)), true},
		{"space", "net 1", true},
		{"newline", "net\n1", true},
		{"null byte", "net\x001", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("net", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("ValidateID(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidInput)
			}
		})
	}
}

func TestValidateLayerName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"M1", "M1", false},
		{"metal_2", "metal_2", false},
		{"via", "V12", false},
		{"dotted", "m.3", false},

		{"empty", "", true},
		{"leading digit", "1M", true},
		{"traversal", "M..1", true},
		{"slash", "M/1", true},
		{"space", "M 1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLayerName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLayerName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRect(t *testing.T) {
	tests := []struct {
		name                   string
		minX, minY, maxX, maxY float64
		wantErr                bool
	}{
		{"normal", 0, 0, 10, 5, false},
		{"degenerate", 3, 3, 3, 3, false},
		{"negative coords", -10, -10, -5, -5, false},

		{"inverted x", 10, 0, 0, 5, true},
		{"inverted y", 0, 5, 10, 0, true},
		{"nan", math.NaN(), 0, 1, 1, true},
		{"inf", 0, 0, math.Inf(1), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRect(tt.minX, tt.minY, tt.maxX, tt.maxY)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidGeometry) {
				t.Errorf("ValidateRect() code = %v, want %v", GetCode(err), ErrCodeInvalidGeometry)
			}
		})
	}
}

func TestValidatePositive(t *testing.T) {
	if err := ValidatePositive("width", 1); err != nil {
		t.Errorf("ValidatePositive(1) = %v", err)
	}
	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := ValidatePositive("width", v); err == nil {
			t.Errorf("ValidatePositive(%v) = nil, want error", v)
		}
	}
	if err := ValidateNonNegative("spacing", 0); err != nil {
		t.Errorf("ValidateNonNegative(0) = %v", err)
	}
	if err := ValidateNonNegative("spacing", -0.5); err == nil {
		t.Error("ValidateNonNegative(-0.5) = nil, want error")
	}
}

func TestValidatePath(t *testing.T) {
	if err := ValidatePath("jobs/chip.toml"); err != nil {
		t.Errorf("ValidatePath() = %v", err)
	}
	if err := ValidatePath(""); err == nil {
		t.Error("ValidatePath(\"\") = nil, want error")
	}
	if err := ValidatePath("a\x00b"); err == nil {
		t.Error("ValidatePath(null) = nil, want error")
	}
}
