// Package encoder builds per-dataset encoders (embedder followed by
// extractor) from an architecture file.
//
// Parameter ownership follows the tying flags of the architecture:
//
//   - embedders_tied and extractors_tied: one *Encoder shared by every dataset
//   - one stage tied: each dataset gets its own *Encoder whose tied stage is
//     the same instance for all datasets
//   - nothing tied: each dataset owns all of its parameters
//
// Function names are resolved once through a Registry; unknown names and
// inconsistent tying are reported together before anything is constructed.
package encoder
