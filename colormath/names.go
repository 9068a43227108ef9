package colormath

// namedColor pairs a CSS color keyword with its sRGB value.
type namedColor struct {
	name string
	rgb  RGB
}

// namedPalette is the CSS named-color set used for fallback naming and as
// the nearest-named hint in model prompts.
var namedPalette = []namedColor{
	{"black", RGB{0x00, 0x00, 0x00}},
	{"white", RGB{0xff, 0xff, 0xff}},
	{"red", RGB{0xff, 0x00, 0x00}},
	{"lime", RGB{0x00, 0xff, 0x00}},
	{"blue", RGB{0x00, 0x00, 0xff}},
	{"yellow", RGB{0xff, 0xff, 0x00}},
	{"cyan", RGB{0x00, 0xff, 0xff}},
	{"magenta", RGB{0xff, 0x00, 0xff}},
	{"silver", RGB{0xc0, 0xc0, 0xc0}},
	{"gray", RGB{0x80, 0x80, 0x80}},
	{"maroon", RGB{0x80, 0x00, 0x00}},
	{"olive", RGB{0x80, 0x80, 0x00}},
	{"green", RGB{0x00, 0x80, 0x00}},
	{"purple", RGB{0x80, 0x00, 0x80}},
	{"teal", RGB{0x00, 0x80, 0x80}},
	{"navy", RGB{0x00, 0x00, 0x80}},
	{"orange", RGB{0xff, 0xa5, 0x00}},
	{"gold", RGB{0xff, 0xd7, 0x00}},
	{"khaki", RGB{0xf0, 0xe6, 0x8c}},
	{"coral", RGB{0xff, 0x7f, 0x50}},
	{"salmon", RGB{0xfa, 0x80, 0x72}},
	{"tomato", RGB{0xff, 0x63, 0x47}},
	{"crimson", RGB{0xdc, 0x14, 0x3c}},
	{"firebrick", RGB{0xb2, 0x22, 0x22}},
	{"pink", RGB{0xff, 0xc0, 0xcb}},
	{"hotpink", RGB{0xff, 0x69, 0xb4}},
	{"orchid", RGB{0xda, 0x70, 0xd6}},
	{"plum", RGB{0xdd, 0xa0, 0xdd}},
	{"violet", RGB{0xee, 0x82, 0xee}},
	{"indigo", RGB{0x4b, 0x00, 0x82}},
	{"lavender", RGB{0xe6, 0xe6, 0xfa}},
	{"slateblue", RGB{0x6a, 0x5a, 0xcd}},
	{"royalblue", RGB{0x41, 0x69, 0xe1}},
	{"steelblue", RGB{0x46, 0x82, 0xb4}},
	{"dodgerblue", RGB{0x1e, 0x90, 0xff}},
	{"skyblue", RGB{0x87, 0xce, 0xeb}},
	{"turquoise", RGB{0x40, 0xe0, 0xd0}},
	{"aquamarine", RGB{0x7f, 0xff, 0xd4}},
	{"springgreen", RGB{0x00, 0xff, 0x7f}},
	{"seagreen", RGB{0x2e, 0x8b, 0x57}},
	{"forestgreen", RGB{0x22, 0x8b, 0x22}},
	{"olivedrab", RGB{0x6b, 0x8e, 0x23}},
	{"darkgreen", RGB{0x00, 0x64, 0x00}},
	{"chartreuse", RGB{0x7f, 0xff, 0x00}},
	{"beige", RGB{0xf5, 0xf5, 0xdc}},
	{"wheat", RGB{0xf5, 0xde, 0xb3}},
	{"tan", RGB{0xd2, 0xb4, 0x8c}},
	{"chocolate", RGB{0xd2, 0x69, 0x1e}},
	{"sienna", RGB{0xa0, 0x52, 0x2d}},
	{"brown", RGB{0xa5, 0x2a, 0x2a}},
	{"peru", RGB{0xcd, 0x85, 0x3f}},
	{"slategray", RGB{0x70, 0x80, 0x90}},
	{"lightgray", RGB{0xd3, 0xd3, 0xd3}},
	{"darkgray", RGB{0xa9, 0xa9, 0xa9}},
	{"dimgray", RGB{0x69, 0x69, 0x69}},
	{"midnightblue", RGB{0x19, 0x19, 0x70}},
	{"ivory", RGB{0xff, 0xff, 0xf0}},
	{"snow", RGB{0xff, 0xfa, 0xfa}},
}

// NearestNamed returns the CSS named color closest to c in OKLab space,
// together with the perceptual distance to it.
func NearestNamed(c OKLCH) (string, float64) {
	best := ""
	bestDist := -1.0
	for _, n := range namedPalette {
		d := DistanceOK(c, RGBToOKLCH(n.rgb, 1))
		if bestDist < 0 || d < bestDist {
			best = n.name
			bestDist = d
		}
	}
	return best, bestDist
}
