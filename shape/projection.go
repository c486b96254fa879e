package shape

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Projection shapifies a find projection. Inclusion and exclusion flags are
// kept verbatim; computed fields follow the aggregation expression rules, so
// any literal they contain is redacted.
func Projection(doc bson.D) (Value, error) {
	fields := make([]Entry, len(doc))
	for i, e := range doc {
		sv, err := projectionValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("projection %q: %w", e.Key, err)
		}
		fields[i] = Entry{Key: e.Key, Value: sv}
	}
	return OrderedDocument{Fields: fields}, nil
}

func projectionValue(v any) (Value, error) {
	switch TypeTag(v) {
	case TagNumber, TagBool:
		return Constant{Value: v}, nil
	}

	if x, ok := AsDocument(v); ok {
		if !isOperatorDocument(x) {
			return Projection(x)
		}
		if len(x) != 1 {
			return Expression(x)
		}
		switch x[0].Key {
		case "$elemMatch":
			d, ok := AsDocument(x[0].Value)
			if !ok {
				return nil, fmt.Errorf("%w: $elemMatch expects a document", ErrInvalidValue)
			}
			f, err := Filter(d)
			if err != nil {
				return nil, err
			}
			return OrderedDocument{Fields: []Entry{{Key: "$elemMatch", Value: f}}}, nil
		case "$slice":
			return OrderedDocument{Fields: []Entry{{Key: "$slice", Value: Literal{Tag: TypeTag(x[0].Value)}}}}, nil
		case "$meta":
			return OrderedDocument{Fields: []Entry{{Key: "$meta", Value: structural(x[0].Value)}}}, nil
		}
		return Expression(x)
	}

	if x, ok := v.(string); ok && !strings.HasPrefix(x, "$") {
		return Literal{Tag: TagString}, nil
	}
	return Expression(v)
}
