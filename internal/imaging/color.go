package imaging

import (
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ConfidenceColor maps a confidence score to a fully saturated color whose
// hue runs from red (0) through yellow to green (1), i.e. HSL(conf*120, 100%,
// 50%). Scores outside [0,1] are pinned to the ends of that range.
func ConfidenceColor(confidence float64) color.RGBA {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	r, g, b := colorful.Hsl(confidence*120, 1, 0.5).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// withAlpha returns the non-premultiplied form of c at the given opacity.
func withAlpha(c color.RGBA, alpha float64) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(alpha*255 + 0.5)}
}
