package intel

import (
	"fmt"

	"github.com/huetone/chromind/colormath"
)

const systemPrompt = `You are a color naming assistant for a design system. ` +
	`Given one color, reply with a single JSON object and nothing else: ` +
	`{"name": "<evocative two-or-three word display name>", ` +
	`"description": "<one sentence, at most 25 words>", ` +
	`"tags": ["<3 to 6 lowercase mood tags>"]}. ` +
	`Do not wrap the JSON in markdown fences.`

// userPrompt renders the color facts the model names from. The nearest CSS
// keyword anchors the model so names stay plausible for the actual hue.
func userPrompt(c colormath.OKLCH, hex string) string {
	nearest, _ := colormath.NearestNamed(c)
	return fmt.Sprintf(
		"Color %s, oklch(%.4f %.4f %.2f), alpha %.2f. Closest CSS keyword: %s.",
		hex, c.L, c.C, c.H, c.Alpha, nearest)
}
