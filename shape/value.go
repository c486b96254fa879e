package shape

import (
	"bytes"
	"cmp"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
)

// Value is a shaped value. The set of implementations is closed; every
// consumer switches over exactly the types declared in this file.
type Value interface {
	isValue()
}

// Literal is a redacted literal. Only the type of the original value survives.
type Literal struct {
	Tag string
}

// FieldPath references a document field (or, with a leading "$", a variable)
// inside an aggregation expression. Path excludes the leading "$".
type FieldPath struct {
	Path string
}

// Constant is a structural scalar kept verbatim: sort directions, flags,
// collation settings, type names.
type Constant struct {
	Value any
}

// Operator is an aggregation expression operator applied to its arguments.
// List records whether the arguments were written as an array.
type Operator struct {
	Name string
	Args []Value
	List bool
}

// Array is an ordered sequence of shaped values.
type Array struct {
	Elems []Value
}

// Entry is one key/value pair of a shaped document.
type Entry struct {
	Key   string
	Value Value
}

// OrderedDocument is a document whose field order is significant.
type OrderedDocument struct {
	Fields []Entry
}

// UnorderedDocument is a document whose field order is not significant.
// Its fields are kept sorted by key.
type UnorderedDocument struct {
	fields []Entry
}

// Unset marks a shape field whose option was absent from the command.
type Unset struct{}

func (Literal) isValue()           {}
func (FieldPath) isValue()         {}
func (Constant) isValue()          {}
func (Operator) isValue()          {}
func (Array) isValue()             {}
func (OrderedDocument) isValue()   {}
func (UnorderedDocument) isValue() {}
func (Unset) isValue()             {}

// NewUnorderedDocument returns a document holding the given entries sorted by key.
func NewUnorderedDocument(entries []Entry) UnorderedDocument {
	fields := slices.Clone(entries)
	slices.SortStableFunc(fields, func(a, b Entry) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return UnorderedDocument{fields: fields}
}

// Fields returns the entries sorted by key. The slice must not be modified.
func (d UnorderedDocument) Fields() []Entry {
	return d.fields
}

// Render converts a shaped value into its reporting form: bson.D for
// documents and operators, bson.A for arrays, type tags for literals,
// "$path" strings for field paths, and nil for Unset.
func Render(v Value) any {
	switch x := v.(type) {
	case Literal:
		return x.Tag
	case FieldPath:
		return "$" + x.Path
	case Constant:
		return x.Value
	case Operator:
		if !x.List && len(x.Args) == 1 {
			return bson.D{{Key: x.Name, Value: Render(x.Args[0])}}
		}
		args := make(bson.A, len(x.Args))
		for i, a := range x.Args {
			args[i] = Render(a)
		}
		return bson.D{{Key: x.Name, Value: args}}
	case Array:
		out := make(bson.A, len(x.Elems))
		for i, e := range x.Elems {
			out[i] = Render(e)
		}
		return out
	case OrderedDocument:
		return renderEntries(x.Fields)
	case UnorderedDocument:
		return renderEntries(x.fields)
	case Unset:
		return nil
	default:
		panic("shape: unknown value type")
	}
}

func renderEntries(entries []Entry) bson.D {
	out := make(bson.D, len(entries))
	for i, e := range entries {
		out[i] = bson.E{Key: e.Key, Value: Render(e.Value)}
	}
	return out
}

// Equal reports whether two shaped values are structurally equal. Ordered
// containers compare positionally; unordered documents compare as sorted sets.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Literal:
		y, ok := b.(Literal)
		return ok && x.Tag == y.Tag
	case FieldPath:
		y, ok := b.(FieldPath)
		return ok && x.Path == y.Path
	case Constant:
		y, ok := b.(Constant)
		return ok && constantsEqual(x.Value, y.Value)
	case Operator:
		y, ok := b.(Operator)
		return ok && x.Name == y.Name && x.List == y.List && valuesEqual(x.Args, y.Args)
	case Array:
		y, ok := b.(Array)
		return ok && valuesEqual(x.Elems, y.Elems)
	case OrderedDocument:
		y, ok := b.(OrderedDocument)
		return ok && entriesEqual(x.Fields, y.Fields)
	case UnorderedDocument:
		y, ok := b.(UnorderedDocument)
		return ok && entriesEqual(x.fields, y.fields)
	case Unset:
		_, ok := b.(Unset)
		return ok
	default:
		return false
	}
}

func valuesEqual(a, b []Value) bool {
	return slices.EqualFunc(a, b, Equal)
}

func entriesEqual(a, b []Entry) bool {
	return slices.EqualFunc(a, b, func(x, y Entry) bool {
		return x.Key == y.Key && Equal(x.Value, y.Value)
	})
}

func constantsEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, da, errA := bson.MarshalValue(a)
	tb, db, errB := bson.MarshalValue(b)
	if errA != nil || errB != nil {
		return false
	}
	return ta == tb && bytes.Equal(da, db)
}
