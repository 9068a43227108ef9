package colormath

import (
	"fmt"
	"math"
	"strings"
)

// OKLCH is a color in the OKLCH cylindrical space: perceptual lightness L,
// chroma C and hue angle H in degrees, plus alpha.
type OKLCH struct {
	L     float64 `json:"l"`
	C     float64 `json:"c"`
	H     float64 `json:"h"`
	Alpha float64 `json:"alpha"`
}

// RGB is an 8-bit sRGB color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Input range limits. Chroma above 0.5 has no representable sRGB color at
// any lightness.
const (
	MaxChroma = 0.5
)

// Validate checks that the color components are inside the accepted ranges.
// It returns one error per offending field.
func (c OKLCH) Validate() []error {
	var errs []error
	if c.L < 0 || c.L > 1 {
		errs = append(errs, fmt.Errorf("l must be between 0 and 1 (got %g)", c.L))
	}
	if c.C < 0 || c.C > MaxChroma {
		errs = append(errs, fmt.Errorf("c must be between 0 and %g (got %g)", MaxChroma, c.C))
	}
	if c.H < 0 || c.H >= 360 {
		errs = append(errs, fmt.Errorf("h must be between 0 and 360 (got %g)", c.H))
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		errs = append(errs, fmt.Errorf("alpha must be between 0 and 1 (got %g)", c.Alpha))
	}
	return errs
}

// String formats the color as a CSS oklch() value.
func (c OKLCH) String() string {
	if c.Alpha < 1 {
		return fmt.Sprintf("oklch(%.4f %.4f %.2f / %.3f)", c.L, c.C, c.H, c.Alpha)
	}
	return fmt.Sprintf("oklch(%.4f %.4f %.2f)", c.L, c.C, c.H)
}

// Hex formats the color as a lowercase #rrggbb string.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses #rgb, #rrggbb and #rrggbbaa hex colors. The leading '#'
// is optional and parsing is case-insensitive. The returned alpha is 1 when
// the string carries no alpha channel.
func ParseHex(s string) (RGB, float64, error) {
	h := strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "#")

	var digits [8]uint8
	for i := 0; i < len(h) && i < 8; i++ {
		v, err := hexDigit(h[i])
		if err != nil {
			return RGB{}, 0, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		digits[i] = v
	}

	alpha := 1.0
	switch len(h) {
	case 3:
		return RGB{R: digits[0] * 17, G: digits[1] * 17, B: digits[2] * 17}, alpha, nil
	case 8:
		alpha = float64(digits[6]*16+digits[7]) / 255.0
		fallthrough
	case 6:
		return RGB{
			R: digits[0]*16 + digits[1],
			G: digits[2]*16 + digits[3],
			B: digits[4]*16 + digits[5],
		}, alpha, nil
	default:
		return RGB{}, 0, fmt.Errorf("invalid hex color %q: expected 3, 6 or 8 digits", s)
	}
}

func hexDigit(b byte) (uint8, error) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', nil
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, nil
	default:
		return 0, fmt.Errorf("bad digit %q", string(b))
	}
}

// oklab is the rectangular form used internally for conversions and
// distance computation.
type oklab struct {
	l, a, b float64
}

// Conversion matrices from Björn Ottosson's OKLab reference implementation.

func linearToOKLab(r, g, b float64) oklab {
	l := 0.4122214708*r + 0.5363325363*g + 0.0514459929*b
	m := 0.2119034982*r + 0.6806995451*g + 0.1073969566*b
	s := 0.0883024619*r + 0.2817188376*g + 0.6299787005*b

	lc := math.Cbrt(l)
	mc := math.Cbrt(m)
	sc := math.Cbrt(s)

	return oklab{
		l: 0.2104542553*lc + 0.7936177850*mc - 0.0040720468*sc,
		a: 1.9779984951*lc - 2.4285922050*mc + 0.4505937099*sc,
		b: 0.0259040371*lc + 0.7827717662*mc - 0.8086757660*sc,
	}
}

func oklabToLinear(c oklab) (r, g, b float64) {
	lc := c.l + 0.3963377774*c.a + 0.2158037573*c.b
	mc := c.l - 0.1055613458*c.a - 0.0638541728*c.b
	sc := c.l - 0.0894841775*c.a - 1.2914855480*c.b

	l := lc * lc * lc
	m := mc * mc * mc
	s := sc * sc * sc

	r = 4.0767416621*l - 3.3077115913*m + 0.2309699292*s
	g = -1.2684380046*l + 2.6097574011*m - 0.3413193965*s
	b = -0.0041960863*l - 0.7034186147*m + 1.7076147010*s
	return r, g, b
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1.0/2.4) - 0.055
}

func (c OKLCH) toOKLab() oklab {
	hr := c.H * math.Pi / 180.0
	return oklab{l: c.L, a: c.C * math.Cos(hr), b: c.C * math.Sin(hr)}
}

func fromOKLab(lab oklab, alpha float64) OKLCH {
	chroma := math.Hypot(lab.a, lab.b)
	hue := 0.0
	// Hue is undefined for achromatic colors; normalize to 0.
	if chroma > 1e-7 {
		hue = math.Atan2(lab.b, lab.a) * 180.0 / math.Pi
		if hue < 0 {
			hue += 360
		}
	} else {
		chroma = 0
	}
	return OKLCH{L: lab.l, C: chroma, H: hue, Alpha: alpha}
}

// RGBToOKLCH converts an 8-bit sRGB color to OKLCH.
func RGBToOKLCH(c RGB, alpha float64) OKLCH {
	lab := linearToOKLab(
		srgbToLinear(float64(c.R)/255.0),
		srgbToLinear(float64(c.G)/255.0),
		srgbToLinear(float64(c.B)/255.0),
	)
	out := fromOKLab(lab, alpha)
	// Clamp float noise on the achromatic axis.
	if out.L < 0 {
		out.L = 0
	}
	if out.L > 1 {
		out.L = 1
	}
	return out
}

// OKLCHToRGB converts to 8-bit sRGB, reducing chroma at constant lightness
// and hue when the color lies outside the sRGB gamut.
func OKLCHToRGB(c OKLCH) RGB {
	mapped := MapToGamut(c)
	r, g, b := oklabToLinear(mapped.toOKLab())
	return RGB{
		R: channelTo8(linearToSRGB(r)),
		G: channelTo8(linearToSRGB(g)),
		B: channelTo8(linearToSRGB(b)),
	}
}

func channelTo8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255.0))
}

// InGamut reports whether the color maps into sRGB without clipping.
func InGamut(c OKLCH) bool {
	r, g, b := oklabToLinear(c.toOKLab())
	const eps = 1e-6
	return r >= -eps && r <= 1+eps && g >= -eps && g <= 1+eps && b >= -eps && b <= 1+eps
}

// MapToGamut binary-searches the largest chroma at the color's lightness
// and hue that still fits in sRGB. Hue and lightness are preserved.
func MapToGamut(c OKLCH) OKLCH {
	if c.L <= 0 {
		return OKLCH{L: 0, Alpha: c.Alpha}
	}
	if c.L >= 1 {
		return OKLCH{L: 1, Alpha: c.Alpha}
	}
	if InGamut(c) {
		return c
	}

	lo, hi := 0.0, c.C
	for i := 0; i < 32; i++ {
		mid := (lo + hi) / 2
		if InGamut(OKLCH{L: c.L, C: mid, H: c.H}) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return OKLCH{L: c.L, C: lo, H: c.H, Alpha: c.Alpha}
}

// DistanceOK is the Euclidean distance between two colors in OKLab, a
// perceptually uniform delta-E.
func DistanceOK(a, b OKLCH) float64 {
	la, lb := a.toOKLab(), b.toOKLab()
	return math.Sqrt((la.l-lb.l)*(la.l-lb.l) + (la.a-lb.a)*(la.a-lb.a) + (la.b-lb.b)*(la.b-lb.b))
}
