package record

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Feature names.
const (
	FeatureLabel     = "label"
	FeatureWordID    = "word_id"
	FeatureOldLength = "old_length"
	FeatureNewLength = "new_length"
	FeatureBOW       = "bow"
)

// Example is one encoded document.
type Example struct {
	Label     int64
	WordIDs   []int64
	OldLength int64
	NewLength int64
	BOW       []float32 // nil unless bag-of-words encoding was requested
}

// Validate checks every word id against the vocabulary size.
func (e *Example) Validate(vocabSize int) error {
	for i, id := range e.WordIDs {
		if id < 0 || id >= int64(vocabSize) {
			return &IDRangeError{ID: id, Position: i, VocabSize: vocabSize}
		}
	}
	if e.BOW != nil && len(e.BOW) != vocabSize {
		return fmt.Errorf("%w: bag of words has %d entries, vocabulary has %d", ErrMalformed, len(e.BOW), vocabSize)
	}
	return nil
}

// BagOfWords counts ids into a dense vector of length vocabSize.
// Padding (id 0) is not counted.
func BagOfWords(ids []int64, vocabSize int) ([]float32, error) {
	bow := make([]float32, vocabSize)
	for i, id := range ids {
		if id < 0 || id >= int64(vocabSize) {
			return nil, &IDRangeError{ID: id, Position: i, VocabSize: vocabSize}
		}
		if id == 0 {
			continue
		}
		bow[id]++
	}
	return bow, nil
}

// tf.train protobuf field numbers.
const (
	exampleFeatures  protowire.Number = 1 // Example.features
	featuresFeature  protowire.Number = 1 // Features.feature (map entry)
	mapKey           protowire.Number = 1
	mapValue         protowire.Number = 2
	featureFloatList protowire.Number = 2 // Feature.float_list
	featureInt64List protowire.Number = 3 // Feature.int64_list
	listValue        protowire.Number = 1 // {Float,Int64}List.value
)

// Marshal encodes e as a serialized tf.train.Example.
func Marshal(e *Example) []byte {
	features := map[string][]byte{
		FeatureLabel:     int64Feature(e.Label),
		FeatureWordID:    int64Feature(e.WordIDs...),
		FeatureOldLength: int64Feature(e.OldLength),
		FeatureNewLength: int64Feature(e.NewLength),
	}
	if e.BOW != nil {
		features[FeatureBOW] = floatFeature(e.BOW)
	}

	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	var body []byte
	for _, name := range names {
		var entry []byte
		entry = protowire.AppendTag(entry, mapKey, protowire.BytesType)
		entry = protowire.AppendString(entry, name)
		entry = protowire.AppendTag(entry, mapValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, features[name])

		body = protowire.AppendTag(body, featuresFeature, protowire.BytesType)
		body = protowire.AppendBytes(body, entry)
	}

	var out []byte
	out = protowire.AppendTag(out, exampleFeatures, protowire.BytesType)
	out = protowire.AppendBytes(out, body)
	return out
}

func int64Feature(values ...int64) []byte {
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	var list []byte
	list = protowire.AppendTag(list, listValue, protowire.BytesType)
	list = protowire.AppendBytes(list, packed)

	var f []byte
	f = protowire.AppendTag(f, featureInt64List, protowire.BytesType)
	return protowire.AppendBytes(f, list)
}

func floatFeature(values []float32) []byte {
	packed := make([]byte, 0, 4*len(values))
	for _, v := range values {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	var list []byte
	list = protowire.AppendTag(list, listValue, protowire.BytesType)
	list = protowire.AppendBytes(list, packed)

	var f []byte
	f = protowire.AppendTag(f, featureFloatList, protowire.BytesType)
	return protowire.AppendBytes(f, list)
}

// Unmarshal decodes a serialized tf.train.Example written by Marshal or by
// TensorFlow itself. Unknown features and fields are skipped.
func Unmarshal(data []byte) (*Example, error) {
	e := &Example{}
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != exampleFeatures || typ != protowire.BytesType {
			return nil
		}
		return eachField(v, func(num protowire.Number, typ protowire.Type, entry []byte) error {
			if num != featuresFeature || typ != protowire.BytesType {
				return nil
			}
			return decodeEntry(e, entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func decodeEntry(e *Example, entry []byte) error {
	var name string
	var feature []byte
	err := eachField(entry, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case mapKey:
			name = string(v)
		case mapValue:
			feature = v
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch name {
	case FeatureBOW:
		floats, err := decodeFloats(feature)
		if err != nil {
			return err
		}
		e.BOW = floats
		return nil
	case FeatureWordID:
		ints, err := decodeInt64s(feature)
		if err != nil {
			return err
		}
		e.WordIDs = ints
		return nil
	case FeatureLabel, FeatureOldLength, FeatureNewLength:
		ints, err := decodeInt64s(feature)
		if err != nil {
			return err
		}
		if len(ints) != 1 {
			return fmt.Errorf("%w: feature %s has %d values", ErrMalformed, name, len(ints))
		}
		switch name {
		case FeatureLabel:
			e.Label = ints[0]
		case FeatureOldLength:
			e.OldLength = ints[0]
		default:
			e.NewLength = ints[0]
		}
	}
	return nil
}

func decodeInt64s(feature []byte) ([]int64, error) {
	out := []int64{}
	err := eachField(feature, func(num protowire.Number, typ protowire.Type, list []byte) error {
		if num != featureInt64List || typ != protowire.BytesType {
			return nil
		}
		return eachRaw(list, func(num protowire.Number, typ protowire.Type, raw []byte) error {
			if num != listValue {
				return nil
			}
			switch typ {
			case protowire.BytesType: // packed
				packed, n := protowire.ConsumeBytes(raw)
				if n < 0 {
					return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
				}
				for len(packed) > 0 {
					v, m := protowire.ConsumeVarint(packed)
					if m < 0 {
						return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
					}
					out = append(out, int64(v))
					packed = packed[m:]
				}
			case protowire.VarintType:
				v, m := protowire.ConsumeVarint(raw)
				if m < 0 {
					return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
				}
				out = append(out, int64(v))
			}
			return nil
		})
	})
	return out, err
}

func decodeFloats(feature []byte) ([]float32, error) {
	out := []float32{}
	err := eachField(feature, func(num protowire.Number, typ protowire.Type, list []byte) error {
		if num != featureFloatList || typ != protowire.BytesType {
			return nil
		}
		return eachRaw(list, func(num protowire.Number, typ protowire.Type, raw []byte) error {
			if num != listValue {
				return nil
			}
			switch typ {
			case protowire.BytesType: // packed
				packed, n := protowire.ConsumeBytes(raw)
				if n < 0 {
					return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
				}
				if len(packed)%4 != 0 {
					return fmt.Errorf("%w: packed float list of %d bytes", ErrMalformed, len(packed))
				}
				for len(packed) > 0 {
					v, m := protowire.ConsumeFixed32(packed)
					if m < 0 {
						return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
					}
					out = append(out, math.Float32frombits(v))
					packed = packed[m:]
				}
			case protowire.Fixed32Type:
				v, m := protowire.ConsumeFixed32(raw)
				if m < 0 {
					return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
				}
				out = append(out, math.Float32frombits(v))
			}
			return nil
		})
	})
	return out, err
}

// eachField walks the fields of a message and hands length-delimited
// payloads (or nil for other wire types) to fn.
func eachField(data []byte, fn func(protowire.Number, protowire.Type, []byte) error) error {
	return eachRaw(data, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		if typ != protowire.BytesType {
			return fn(num, typ, nil)
		}
		v, n := protowire.ConsumeBytes(raw)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		return fn(num, typ, v)
	})
}

// eachRaw walks the fields of a message and hands each raw value, tag
// stripped, to fn.
func eachRaw(data []byte, fn func(protowire.Number, protowire.Type, []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]
		m := protowire.ConsumeFieldValue(num, typ, data)
		if m < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
		}
		if err := fn(num, typ, data[:m]); err != nil {
			return err
		}
		data = data[m:]
	}
	return nil
}
