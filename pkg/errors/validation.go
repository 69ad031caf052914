package errors

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// maxNameLength bounds layer, net and request identifiers.
const maxNameLength = 128

// ValidateID validates an identifier used for nets, requests and placeholder
// arcs. Identifiers end up in logs, cache keys and JSON output, so control
// characters and whitespace are rejected.
func ValidateID(kind, id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "%s id cannot be empty", kind)
	}
	if len(id) > maxNameLength {
		return New(ErrCodeInvalidInput, "%s id too long (max %d characters)", kind, maxNameLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "%s id %q contains invalid characters", kind, id)
		}
	}
	return nil
}

// layerNameRegex matches technology layer names such as "M1", "metal_2" or "V12".
var layerNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

// ValidateLayerName validates a metal or via layer name.
func ValidateLayerName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidLayer, "layer name cannot be empty")
	}
	if len(name) > maxNameLength {
		return New(ErrCodeInvalidLayer, "layer name too long (max %d characters)", maxNameLength)
	}
	if strings.Contains(name, "..") || !layerNameRegex.MatchString(name) {
		return New(ErrCodeInvalidLayer, "invalid layer name: %q", name)
	}
	return nil
}

// ValidateRect validates rectangle coordinates given as min/max corners.
// Coordinates must be finite and min must not exceed max. Degenerate
// (zero-width) rectangles are allowed.
func ValidateRect(minX, minY, maxX, maxY float64) error {
	for _, v := range []float64{minX, minY, maxX, maxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return New(ErrCodeInvalidGeometry, "rectangle has non-finite coordinate")
		}
	}
	if minX > maxX || minY > maxY {
		return New(ErrCodeInvalidGeometry, "rectangle [%g,%g %g,%g] is inverted", minX, minY, maxX, maxY)
	}
	return nil
}

// ValidatePositive validates that a design-rule value is finite and
// strictly positive.
func ValidatePositive(what string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return New(ErrCodeInvalidConfig, "%s must be positive, got %g", what, v)
	}
	return nil
}

// ValidateNonNegative validates that a design-rule value is finite and not
// negative.
func ValidateNonNegative(what string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return New(ErrCodeInvalidConfig, "%s must not be negative, got %g", what, v)
	}
	return nil
}

// ValidatePath validates a file path given on the command line or in a job
// file. It rejects empty paths and null bytes.
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "path cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return New(ErrCodeInvalidInput, "path contains invalid characters")
	}
	return nil
}
