// Package submission rewrites per-domain prediction files into the
// `id Y|N score` submission format.
package submission

import "math"

// Temperature rescales a probability: sigmoid(logit(score)/T).
//
// Scores of exactly 0 or 1 are returned unchanged, and T == 1 is the
// identity.
func Temperature(score, t float64) float64 {
	if score == 0 || score == 1 || t == 1 {
		return score
	}
	return 1 - 1/(1+math.Exp(math.Log(score/(1-score))/t))
}
