// Package vocab builds, merges and persists vocabulary tables.
//
// Counting happens in a Frequencies value, which keeps tokens in the order
// they were first seen. A Table is frozen from Frequencies: tokens outside
// the requested frequency bounds are dropped and the rest receive dense ids
// by descending count, ties broken by first appearance. Ids 0 and 1 are
// reserved for padding and out-of-vocabulary tokens.
//
// Tables never change after construction. Merging works on Frequencies so
// several datasets can share one id space:
//
//	merged := vocab.MergeAll(freqA, freqB, freqC)
//	table := vocab.FromFrequencies(merged, minFreq, maxFreq)
package vocab
