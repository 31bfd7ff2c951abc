// Package dataset turns a raw dataset directory into encoded record files.
//
// A directory holds data.json.gz (a JSON table with text and label
// columns) and optionally index.json.gz, text_field_names and
// label_field_name. Build runs one linear pass over it:
//
//	load raw -> clean text -> split -> vocabulary -> encode -> records -> metadata
//
// The vocabulary stage takes one of three routes. With GenerateBasicVocab
// the unbounded training vocabulary is written to single/vocab_freq.json
// and Build stops there. With VocabDir the shared frequency table found
// there is trimmed and frozen. Otherwise a private vocabulary is built from
// the training split.
//
// MergeAndBuild runs Build over several directories so that all of them
// share one vocabulary and one maximum document length.
package dataset
