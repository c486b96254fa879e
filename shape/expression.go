package shape

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Expression shapifies an aggregation expression. "$path" strings become
// field paths, "$$var" strings become variable references, {$op: args}
// becomes an Operator, and every other scalar is redacted. $literal and
// $const operands are redacted as a whole.
func Expression(v any) (Value, error) {
	if d, ok := AsDocument(v); ok {
		return expressionDocument(d)
	}
	switch x := v.(type) {
	case string:
		if strings.HasPrefix(x, "$") {
			return FieldPath{Path: x[1:]}, nil
		}
		return Literal{Tag: TagString}, nil

	case bson.A:
		return expressionArray(x)

	case []any:
		return expressionArray(x)

	default:
		return Literal{Tag: TypeTag(v)}, nil
	}
}

func expressionDocument(d bson.D) (Value, error) {
	if len(d) == 1 && strings.HasPrefix(d[0].Key, "$") {
		return expressionOperator(d[0].Key, d[0].Value)
	}
	fields := make([]Entry, len(d))
	for i, e := range d {
		if strings.HasPrefix(e.Key, "$") {
			return nil, fmt.Errorf("%w: operator %s inside an object expression", ErrInvalidValue, e.Key)
		}
		sv, err := Expression(e.Value)
		if err != nil {
			return nil, err
		}
		fields[i] = Entry{Key: e.Key, Value: sv}
	}
	return OrderedDocument{Fields: fields}, nil
}

func expressionOperator(name string, arg any) (Value, error) {
	switch name {
	case "$literal", "$const":
		return Literal{Tag: TypeTag(arg)}, nil
	}

	if elems, ok := asArray(arg); ok {
		args := make([]Value, len(elems))
		for i, e := range elems {
			sv, err := Expression(e)
			if err != nil {
				return nil, err
			}
			args[i] = sv
		}
		return Operator{Name: name, Args: args, List: true}, nil
	}

	sv, err := Expression(arg)
	if err != nil {
		return nil, err
	}
	return Operator{Name: name, Args: []Value{sv}}, nil
}

func expressionArray(elems []any) (Value, error) {
	out := make([]Value, len(elems))
	for i, e := range elems {
		sv, err := Expression(e)
		if err != nil {
			return nil, err
		}
		out[i] = sv
	}
	return Array{Elems: out}, nil
}
