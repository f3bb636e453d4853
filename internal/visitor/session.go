package visitor

import "unicode/utf16"

// Experiment variants.
const (
	VariantControl = "control"
	VariantA       = "variant-a"
	VariantB       = "variant-b"
)

// Hash maps s onto [0, max). UTF-16 code units are folded into a wrapping
// 32-bit signed accumulator (h = h*31 + c), the same value the site's browser
// code computes.
func Hash(s string, max int) int {
	if max <= 0 {
		return 0
	}
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % int64(max))
}

// ExperimentVariant assigns a visitor to one of three roughly equal buckets.
func ExperimentVariant(visitorID string) string {
	switch h := Hash(visitorID, 100); {
	case h < 33:
		return VariantControl
	case h < 66:
		return VariantA
	default:
		return VariantB
	}
}

// AvatarGender picks a stable avatar variant for a visitor.
func AvatarGender(visitorID string) string {
	if Hash(visitorID, 100) < 50 {
		return "male"
	}
	return "female"
}
