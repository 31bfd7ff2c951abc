// Package serialization saves and restores model weights in the
// SafeTensors format.
//
// File layout:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON object, tensor name -> {dtype, shape, data_offsets}]
//	[data: raw little-endian float64 values]
//
// Tensors are written in alphabetical order. The header carries a
// "__metadata__" map; the writer stores the SHA-256 of the data section
// under "sha256" and readers verify it when present.
//
// Parameter names are scoped paths such as "encoder_shared/embedding/weight".
package serialization
