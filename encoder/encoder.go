package encoder

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonwraymond/querystats/key"
	"github.com/jonwraymond/querystats/shape"
)

// Variant tags. Every encoded value starts with one of these bytes, so values
// of different variants never share an encoding.
const (
	tagLiteral   byte = 'L'
	tagFieldPath byte = 'P'
	tagConstant  byte = 'C'
	tagOperator  byte = 'O'
	tagArray     byte = 'A'
	tagOrdered   byte = 'D'
	tagUnordered byte = 'U'
	tagUnset     byte = 'N'
)

// version prefixes every encoding. Bump it when the layout changes.
const version byte = 1

// Encode returns the canonical encoding of k.
//
// Contract:
//   - Determinism: structurally equal keys always encode identically.
//   - Injectivity: structurally different keys never encode identically.
//     Strings and containers are length-prefixed and values variant-tagged.
//   - Concurrency: safe for concurrent use; k is not modified.
func Encode(k *key.QueryStatsKey) ([]byte, error) {
	return Append(make([]byte, 0, 256), k)
}

// Append appends the canonical encoding of k to dst.
func Append(dst []byte, k *key.QueryStatsKey) ([]byte, error) {
	if k == nil || k.Shape == nil {
		return dst, ErrNilKey
	}
	dst = append(dst, version)
	dst = appendString(dst, k.Command)

	var err error
	dst = binary.AppendUvarint(dst, uint64(len(k.Shape.Fields)))
	for _, f := range k.Shape.Fields {
		dst = appendString(dst, f.Name)
		if dst, err = appendValue(dst, f.Value); err != nil {
			return dst, fmt.Errorf("%s.%s: %w", k.Command, f.Name, err)
		}
	}
	dst = binary.AppendUvarint(dst, uint64(len(k.Outer)))
	for _, f := range k.Outer {
		dst = appendString(dst, f.Name)
		if dst, err = appendValue(dst, f.Value); err != nil {
			return dst, fmt.Errorf("%s.%s: %w", k.Command, f.Name, err)
		}
	}
	return dst, nil
}

// Value returns the canonical encoding of a single shaped value.
func Value(v shape.Value) ([]byte, error) {
	return appendValue(nil, v)
}

func appendValue(dst []byte, v shape.Value) ([]byte, error) {
	var err error
	switch x := v.(type) {
	case shape.Literal:
		dst = append(dst, tagLiteral)
		dst = appendString(dst, x.Tag)
	case shape.FieldPath:
		dst = append(dst, tagFieldPath)
		dst = appendString(dst, x.Path)
	case shape.Constant:
		if x.Value == nil {
			dst = append(dst, tagConstant, byte(bson.TypeNull))
			dst = appendBytes(dst, nil)
			break
		}
		t, data, merr := bson.MarshalValue(x.Value)
		if merr != nil {
			return dst, fmt.Errorf("%w: %T: %w", ErrUnencodable, x.Value, merr)
		}
		dst = append(dst, tagConstant, byte(t))
		dst = appendBytes(dst, data)
	case shape.Operator:
		dst = append(dst, tagOperator)
		dst = appendString(dst, x.Name)
		if x.List {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
		dst = binary.AppendUvarint(dst, uint64(len(x.Args)))
		for _, a := range x.Args {
			if dst, err = appendValue(dst, a); err != nil {
				return dst, err
			}
		}
	case shape.Array:
		dst = append(dst, tagArray)
		dst = binary.AppendUvarint(dst, uint64(len(x.Elems)))
		for _, e := range x.Elems {
			if dst, err = appendValue(dst, e); err != nil {
				return dst, err
			}
		}
	case shape.OrderedDocument:
		dst = append(dst, tagOrdered)
		return appendEntries(dst, x.Fields)
	case shape.UnorderedDocument:
		// Fields are kept sorted by key, so positional encoding is canonical.
		dst = append(dst, tagUnordered)
		return appendEntries(dst, x.Fields())
	case shape.Unset:
		dst = append(dst, tagUnset)
	default:
		return dst, fmt.Errorf("%w: value type %T", ErrUnencodable, v)
	}
	return dst, nil
}

func appendEntries(dst []byte, entries []shape.Entry) ([]byte, error) {
	var err error
	dst = binary.AppendUvarint(dst, uint64(len(entries)))
	for _, e := range entries {
		dst = appendString(dst, e.Key)
		if dst, err = appendValue(dst, e.Value); err != nil {
			return dst, fmt.Errorf("%s: %w", e.Key, err)
		}
	}
	return dst, nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendBytes(dst, b []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

// Hash returns the 64-bit hash of an encoding, used for shard selection.
func Hash(encoded []byte) uint64 {
	return xxhash.Sum64(encoded)
}

// ID derives a stable identifier for an encoded key.
// Format: qs:<command>:<hash>
// where hash is the first 16 hex characters of SHA-256(encoded).
func ID(command string, encoded []byte) string {
	sum := sha256.Sum256(encoded)
	return fmt.Sprintf("qs:%s:%s", command, hex.EncodeToString(sum[:8]))
}
