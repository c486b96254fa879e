package shape

import (
	"fmt"
	"maps"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
)

// Sort shapifies a sort specification. Field order and direction values are
// structural and kept verbatim, including {$meta: "textScore"} directions.
func Sort(doc bson.D) (Value, error) {
	fields := make([]Entry, len(doc))
	for i, e := range doc {
		fields[i] = Entry{Key: e.Key, Value: structural(e.Value)}
	}
	return OrderedDocument{Fields: fields}, nil
}

// KeyBounds shapifies min/max index bounds: key paths are kept and bound
// values redacted.
func KeyBounds(doc bson.D) (Value, error) {
	fields := make([]Entry, len(doc))
	for i, e := range doc {
		fields[i] = Entry{Key: e.Key, Value: Literal{Tag: TypeTag(e.Value)}}
	}
	return OrderedDocument{Fields: fields}, nil
}

// Let shapifies a let variable map. Variable names are kept; their values
// are aggregation expressions. Variable order is not significant.
func Let(doc bson.D) (Value, error) {
	entries := make([]Entry, len(doc))
	for i, e := range doc {
		sv, err := Expression(e.Value)
		if err != nil {
			return nil, fmt.Errorf("let %q: %w", e.Key, err)
		}
		entries[i] = Entry{Key: e.Key, Value: sv}
	}
	return NewUnorderedDocument(entries), nil
}

// StructuralDocument keeps every value of doc verbatim and treats field order
// as insignificant at every level. It suits option documents such as
// collation and readConcern.
func StructuralDocument(doc bson.D) (Value, error) {
	return structural(doc), nil
}

// Structural returns v as a verbatim shaped value.
func Structural(v any) Value {
	return structural(v)
}

func structural(v any) Value {
	if d, ok := AsDocument(v); ok {
		entries := make([]Entry, len(d))
		for i, e := range d {
			entries[i] = Entry{Key: e.Key, Value: structural(e.Value)}
		}
		return NewUnorderedDocument(entries)
	}
	switch x := v.(type) {
	case bson.A:
		return structuralArray(x)
	case []any:
		return structuralArray(x)
	default:
		return Constant{Value: v}
	}
}

func structuralArray(elems []any) Value {
	out := make([]Value, len(elems))
	for i, e := range elems {
		out[i] = structural(e)
	}
	return Array{Elems: out}
}

// AsDocument returns v as an ordered document. It accepts bson.D and raw
// BSON as they are, and orders the keys of bson.M and map[string]any so that
// a map always yields the same document.
func AsDocument(v any) (bson.D, bool) {
	switch x := v.(type) {
	case bson.D:
		return x, true
	case bson.M:
		return sortedDocument(x), true
	case map[string]any:
		return sortedDocument(x), true
	case bson.Raw:
		var d bson.D
		if err := bson.Unmarshal(x, &d); err != nil {
			return nil, false
		}
		return d, true
	default:
		return nil, false
	}
}

func sortedDocument(m map[string]any) bson.D {
	d := make(bson.D, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d
}

// asDocument is AsDocument for a named option that must hold a document.
func asDocument(field string, v any) (bson.D, error) {
	if d, ok := AsDocument(v); ok {
		return d, nil
	}
	if _, ok := v.(bson.Raw); ok {
		return nil, fmt.Errorf("%w: %s: malformed BSON", ErrInvalidValue, field)
	}
	return nil, fmt.Errorf("%w: %s must be a document, got %T", ErrInvalidValue, field, v)
}
