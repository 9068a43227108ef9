package colormath

import "math"

// Harmonies holds the classical color-wheel companions of a base color,
// computed in OKLCH hue space so the steps are perceptually even.
type Harmonies struct {
	Complementary      OKLCH   `json:"complementary"`
	Analogous          []OKLCH `json:"analogous"`
	Triadic            []OKLCH `json:"triadic"`
	SplitComplementary []OKLCH `json:"split_complementary"`
	Tetradic           []OKLCH `json:"tetradic"`
}

// rotateHue returns the color rotated by deg degrees, gamut-mapped so every
// harmony member is representable in sRGB.
func rotateHue(c OKLCH, deg float64) OKLCH {
	h := math.Mod(c.H+deg, 360)
	if h < 0 {
		h += 360
	}
	return MapToGamut(OKLCH{L: c.L, C: c.C, H: h, Alpha: c.Alpha})
}

// HarmoniesFor computes the harmony wheel for a base color.
func HarmoniesFor(c OKLCH) Harmonies {
	return Harmonies{
		Complementary:      rotateHue(c, 180),
		Analogous:          []OKLCH{rotateHue(c, -30), rotateHue(c, 30)},
		Triadic:            []OKLCH{rotateHue(c, 120), rotateHue(c, 240)},
		SplitComplementary: []OKLCH{rotateHue(c, 150), rotateHue(c, 210)},
		Tetradic:           []OKLCH{rotateHue(c, 90), rotateHue(c, 180), rotateHue(c, 270)},
	}
}

// ScaleTones are the tone stops of a generated scale, named after the
// conventional 50..950 design-token steps.
var ScaleTones = [11]int{50, 100, 200, 300, 400, 500, 600, 700, 800, 900, 950}

// scaleLightness maps each tone stop to a target OKLCH lightness. Tone 500
// sits near the middle; 50 is near-white, 950 near-black.
var scaleLightness = [11]float64{0.97, 0.93, 0.86, 0.78, 0.70, 0.62, 0.54, 0.46, 0.38, 0.29, 0.22}

// ToneScale generates an 11-step tone scale at the base color's hue. Chroma
// follows the base value through the mid-tones and eases off toward both
// extremes, where sRGB can hold very little chroma anyway.
func ToneScale(c OKLCH) [11]OKLCH {
	var out [11]OKLCH
	for i, l := range scaleLightness {
		// Parabolic ease: full chroma at L=0.62, tapering to 25% at the ends.
		t := (l - 0.22) / (0.97 - 0.22)
		ease := 0.25 + 0.75*(1-4*(t-0.5333)*(t-0.5333))
		if ease < 0.25 {
			ease = 0.25
		}
		out[i] = MapToGamut(OKLCH{L: l, C: c.C * ease, H: c.H, Alpha: 1})
	}
	return out
}
