// Package record serializes encoded examples for downstream training.
//
// The default on-disk format is TFRecord: every record is a serialized
// tf.train.Example framed as
//
//	[8 bytes: length (uint64 LE)]
//	[4 bytes: masked CRC32-C of the length]
//	[length bytes: data]
//	[4 bytes: masked CRC32-C of the data]
//
// Each example carries the features
//
//	label      int64
//	word_id    int64 list
//	old_length int64
//	new_length int64
//	bow        float list (only with bag-of-words encoding)
//
// A Parquet sink with the same columns is available for columnar tooling.
//
// Sinks write one split at a time and only publish the file under its final
// name when Close succeeds, so an aborted run never leaves a truncated
// record file behind.
package record
