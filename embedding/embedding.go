package embedding

import (
	"context"
	"math"

	"github.com/huetone/chromind/colormath"
)

// Dim is the embedding width. Every backend must produce vectors of this
// size so stored records stay comparable across backends.
const Dim = 384

// ColorPoint is the input to an embedder: the analyzed color plus the
// textual metadata generated for it.
type ColorPoint struct {
	Color       colormath.OKLCH
	Hex         string
	Name        string
	Description string
}

// Embedder produces a 384-dimension, L2-normalized vector for a color.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, point ColorPoint) ([]float32, error)
	Close() error
}

// Cosine computes cosine similarity between two vectors. Mismatched or
// zero-length inputs yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// normalize scales v to unit length in place and returns it.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// FeatureEmbedder builds the embedding from closed-form color features:
// Fourier features of the hue angle at increasing frequencies, lightness
// and chroma ramps, the sRGB channels and samples of the tone scale. It is
// deterministic and needs no model files.
type FeatureEmbedder struct{}

// NewFeatureEmbedder returns the default deterministic embedder.
func NewFeatureEmbedder() *FeatureEmbedder {
	return &FeatureEmbedder{}
}

// Name implements Embedder.
func (e *FeatureEmbedder) Name() string { return "feature" }

// Close implements Embedder. The feature embedder holds no resources.
func (e *FeatureEmbedder) Close() error { return nil }

// hueFrequencies is the number of sin/cos harmonic pairs taken of the hue
// angle. Higher harmonics separate nearby hues.
const hueFrequencies = 16

// Embed implements Embedder.
func (e *FeatureEmbedder) Embed(_ context.Context, point ColorPoint) ([]float32, error) {
	c := point.Color
	rgb := colormath.OKLCHToRGB(c)

	v := make([]float32, 0, Dim)
	hr := c.H * math.Pi / 180.0

	// Hue Fourier features, weighted by chroma so achromatic colors carry
	// no hue signal.
	for k := 1; k <= hueFrequencies; k++ {
		w := c.C / colormath.MaxChroma
		v = append(v,
			float32(w*math.Sin(float64(k)*hr)),
			float32(w*math.Cos(float64(k)*hr)))
	}

	// Lightness and chroma ramps: powers spread the scalar across several
	// coordinates so small differences separate in the vector space.
	for k := 1; k <= 8; k++ {
		v = append(v, float32(math.Pow(c.L, float64(k))))
	}
	for k := 1; k <= 8; k++ {
		v = append(v, float32(math.Pow(c.C/colormath.MaxChroma, float64(k))))
	}
	v = append(v, float32(c.Alpha))

	// sRGB channels and WCAG luminance.
	v = append(v,
		float32(float64(rgb.R)/255.0),
		float32(float64(rgb.G)/255.0),
		float32(float64(rgb.B)/255.0),
		float32(colormath.RelativeLuminance(rgb)))

	// Tone-scale samples: lightness and chroma of each generated tone.
	for _, tone := range colormath.ToneScale(c) {
		v = append(v, float32(tone.L), float32(tone.C))
	}

	// Pairwise contrast against the scale extremes.
	scale := colormath.ToneScale(c)
	v = append(v,
		float32(colormath.ContrastRatio(rgb, colormath.OKLCHToRGB(scale[0]))/21.0),
		float32(colormath.ContrastRatio(rgb, colormath.OKLCHToRGB(scale[10]))/21.0))

	// Pad to the fixed width with harmonically-decaying copies of the base
	// features so every coordinate stays a function of the color.
	base := len(v)
	for i := base; i < Dim; i++ {
		src := v[i%base]
		decay := 1.0 / (1.0 + float64(i/base))
		v = append(v, float32(float64(src)*decay))
	}

	return normalize(v[:Dim]), nil
}
