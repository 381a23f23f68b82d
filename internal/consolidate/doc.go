// Package consolidate merges the predictions of several ECG detection models
// into a single verdict.
//
// # Rule
//
// Given up to four named model slots, each either present or absent:
//
//  1. If every slot is absent there is nothing to consolidate (ErrNoResults).
//  2. Predictions whose label contains "no abnormalities" are discarded.
//  3. If nothing remains, the verdict is "Normal" at 100% from "All Models".
//  4. Any abnormal prediction (label without "normal") outranks every normal
//     one; the most confident abnormal prediction wins.
//  5. Otherwise the most confident normal prediction wins.
//
// All label matching is case-insensitive. Ties keep the first prediction seen
// in slot order; callers should not depend on which of two equally confident
// predictions is reported.
//
// Consolidate performs no I/O and holds no state, so it is safe for
// concurrent use.
package consolidate
