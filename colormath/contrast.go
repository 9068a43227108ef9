package colormath

// RelativeLuminance computes the WCAG 2.x relative luminance of an sRGB
// color, in [0, 1].
func RelativeLuminance(c RGB) float64 {
	r := srgbToLinear(float64(c.R) / 255.0)
	g := srgbToLinear(float64(c.G) / 255.0)
	b := srgbToLinear(float64(c.B) / 255.0)
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// ContrastRatio computes the WCAG contrast ratio between two colors. The
// result is symmetric and lies in [1, 21].
func ContrastRatio(a, b RGB) float64 {
	la := RelativeLuminance(a)
	lb := RelativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// WCAG conformance levels for a contrast ratio.
const (
	WCAGFail = "fail"
	WCAGAA18 = "aa-large" // AA for large text only
	WCAGAA   = "aa"
	WCAGAAA  = "aaa"
)

// WCAGLevel classifies a contrast ratio. With largeText set, the large-text
// thresholds (3:1 AA, 4.5:1 AAA) apply.
func WCAGLevel(ratio float64, largeText bool) string {
	if largeText {
		switch {
		case ratio >= 4.5:
			return WCAGAAA
		case ratio >= 3.0:
			return WCAGAA
		default:
			return WCAGFail
		}
	}
	switch {
	case ratio >= 7.0:
		return WCAGAAA
	case ratio >= 4.5:
		return WCAGAA
	case ratio >= 3.0:
		return WCAGAA18
	default:
		return WCAGFail
	}
}
