package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/consolidate"
)

const (
	strokeWidth  = 3
	labelHeight  = 20
	labelPadX    = 5
	labelBaseOff = 7
	labelAlpha   = 0.7
)

// AnnotatedImage contains a rendered canvas with detection boxes.
type AnnotatedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Boxes       int    `json:"boxes"`
}

// Placement describes where the source image lands on the canvas.
type Placement struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// MaxCanvasPixels is the largest canvas Annotate allocates, whatever the
// caller's own limit.
const MaxCanvasPixels = 8192 * 8192

// ErrCanvasTooLarge is returned for canvases above the pixel limit.
var ErrCanvasTooLarge = errors.New("canvas too large")

// CheckCanvas rejects non-positive sizes and canvases of more than maxPixels
// pixels.
func CheckCanvas(canvasW, canvasH, maxPixels int) error {
	if canvasW <= 0 || canvasH <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", canvasW, canvasH)
	}
	if canvasW > maxPixels/canvasH {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrCanvasTooLarge, canvasW, canvasH, maxPixels)
	}
	return nil
}

// Fit computes the uniform scale and centering offsets that letterbox a
// srcW x srcH image into a canvasW x canvasH canvas.
func Fit(srcW, srcH, canvasW, canvasH int) Placement {
	scale := math.Min(float64(canvasW)/float64(srcW), float64(canvasH)/float64(srcH))
	return Placement{
		Scale:   scale,
		OffsetX: (float64(canvasW) - float64(srcW)*scale) / 2,
		OffsetY: (float64(canvasH) - float64(srcH)*scale) / 2,
	}
}

// Render draws the image letterboxed onto a transparent canvas and overlays
// one box per prediction that carries spatial data.
//
// Prediction coordinates are center points in source image pixels. Each box
// is stroked in ConfidenceColor, topped with a translucent label band of the
// same color, and labeled "<class> (<percent>%)" in white. Predictions
// without a complete box are skipped.
//
// It returns the canvas and the number of boxes drawn.
func Render(img image.Image, preds []consolidate.Prediction, canvasW, canvasH int) (*image.RGBA, int) {
	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return canvas, 0
	}
	p := Fit(b.Dx(), b.Dy(), canvasW, canvasH)

	scaledW := int(math.Round(float64(b.Dx()) * p.Scale))
	scaledH := int(math.Round(float64(b.Dy()) * p.Scale))
	if scaledW > 0 && scaledH > 0 {
		scaled := imaging.Resize(img, scaledW, scaledH, imaging.Lanczos)
		at := image.Pt(int(math.Round(p.OffsetX)), int(math.Round(p.OffsetY)))
		draw.Draw(canvas, scaled.Bounds().Add(at), scaled, image.Point{}, draw.Over)
	}

	boxes := 0
	for _, pred := range preds {
		if !pred.HasBox() {
			continue
		}
		x := *pred.X - *pred.Width/2
		y := *pred.Y - *pred.Height/2

		box := image.Rect(
			int(math.Round(x*p.Scale+p.OffsetX)),
			int(math.Round(y*p.Scale+p.OffsetY)),
			int(math.Round((x+*pred.Width)*p.Scale+p.OffsetX)),
			int(math.Round((y+*pred.Height)*p.Scale+p.OffsetY)),
		)

		c := ConfidenceColor(pred.Confidence)
		strokeRect(canvas, box, c)

		band := image.Rect(box.Min.X, box.Min.Y-labelHeight, box.Max.X, box.Min.Y)
		draw.Draw(canvas, band, image.NewUniform(withAlpha(c, labelAlpha)), image.Point{}, draw.Over)

		label := fmt.Sprintf("%s (%d%%)", pred.Label, int(math.Round(pred.Confidence*100)))
		drawLabel(canvas, box.Min.X+labelPadX, box.Min.Y-labelBaseOff, label, color.White)
		boxes++
	}

	return canvas, boxes
}

// Annotate renders the predictions over the image and returns the canvas as
// a base64 PNG.
func Annotate(img image.Image, preds []consolidate.Prediction, canvasW, canvasH int) (*AnnotatedImage, error) {
	if err := CheckCanvas(canvasW, canvasH, MaxCanvasPixels); err != nil {
		return nil, err
	}

	canvas, boxes := Render(img, preds, canvasW, canvasH)

	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}

	return &AnnotatedImage{
		Width:       canvasW,
		Height:      canvasH,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Boxes:       boxes,
	}, nil
}

// strokeRect draws a rectangle outline strokeWidth pixels wide, centered on
// the rectangle's edges.
func strokeRect(dst draw.Image, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	half := strokeWidth / 2
	edges := []image.Rectangle{
		image.Rect(r.Min.X-half, r.Min.Y-half, r.Max.X+half+1, r.Min.Y+half+1),
		image.Rect(r.Min.X-half, r.Max.Y-half, r.Max.X+half+1, r.Max.Y+half+1),
		image.Rect(r.Min.X-half, r.Min.Y-half, r.Min.X+half+1, r.Max.Y+half+1),
		image.Rect(r.Max.X-half, r.Min.Y-half, r.Max.X+half+1, r.Max.Y+half+1),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Over)
	}
}

// drawLabel writes text with its baseline at (x, y).
func drawLabel(dst draw.Image, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
