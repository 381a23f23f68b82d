// Package analysis orchestrates one ECG analysis: it resolves the image,
// fans it out to the hosted detection models, consolidates their findings
// into a single verdict and assembles a Report.
//
// # Stages
//
// The model fan-out always runs. Three stages are optional per request:
//
//   - Annotate renders each model's boxes over the letterboxed image.
//   - ReadStrip recognizes the printed strip text (paper speed, gain, rate).
//     It runs concurrently with the model calls.
//   - SecondOpinion asks a generative model for its own assessment, given
//     the per-model results and the verdict as context. The opinion is
//     reported next to the verdict and never replaces it.
//
// Optional stages that fail or are unavailable add a warning to the report
// instead of failing it.
//
// # Collaborators
//
// The detector, opinion provider and strip reader are interfaces; in
// production they are a roboflow.Analyzer, a gemini.Client and a
// tesseract.Reader.
package analysis
