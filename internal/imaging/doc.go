// Package imaging prepares ECG images for the hosted models and renders their
// detections.
//
// # Transport Encoding
//
// Hosted models receive images as plain standard base64, without a data URL
// prefix. ImageCache.EncodeFile produces that form from a file on disk and
// DecodeBase64 accepts it (with or without a "data:<mime>;base64," prefix)
// from callers that upload images directly.
//
// # Annotation
//
// Render and Annotate reproduce a fixed-size canvas view of one model's
// results:
//   - The image is letterboxed: scaled uniformly by min(cw/w, ch/h) and
//     centered, leaving the remaining canvas transparent.
//   - Each prediction with a complete center-point box is stroked 3px wide
//     in a color whose hue runs from red (confidence 0) to green (1).
//   - A 20px band of the same color at 70% opacity sits above the box and
//     carries the label "<class> (<percent>%)" in white.
//
// Predictions without spatial data are not drawn.
//
// # Coordinate System
//
// Prediction coordinates are in source image pixels with (0,0) at the
// top-left; X grows rightward and Y downward.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Rendering allocates a fresh canvas
// per call and never mutates the source image.
package imaging
