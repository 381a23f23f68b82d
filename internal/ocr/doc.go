// Package ocr reads the text printed on ECG strips.
//
// Most ECG printouts carry calibration and measurement annotations next to
// the tracing: paper speed ("25 mm/s"), amplitude gain ("10 mm/mV"), a heart
// rate ("HR: 72 bpm") and lead labels (I, II, III, aVR, aVL, aVF, V1-V6).
// ParseStripText extracts those from recognized text; it is pure and has no
// native dependencies.
//
// The Tesseract-backed reader lives in the tesseract subpackage so that
// callers which only need parsing, and their tests, do not link against the
// native library.
//
// # Prerequisites
//
// The tesseract subpackage requires Tesseract and its language data:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng libtesseract-dev
//   - macOS: brew install tesseract
package ocr
