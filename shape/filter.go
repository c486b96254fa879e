package shape

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// operandKind says how the operand of a match operator is shapified.
type operandKind int

const (
	// operandLiteral operands are user data and are redacted.
	operandLiteral operandKind = iota
	// operandStructural operands change query semantics and are kept verbatim.
	operandStructural
	// operandPredicate operands are operator documents or regexes ($not).
	operandPredicate
	// operandElemMatch operands are either operator documents or sub-filters.
	operandElemMatch
	// operandFilterList operands are arrays of filters ($and, $or, $nor).
	operandFilterList
	// operandExpression operands are aggregation expressions ($expr).
	operandExpression
	// operandLiteralDocument operands keep their keys and redact their values.
	operandLiteralDocument
)

// pathOperators are the operators allowed inside a field predicate.
var pathOperators = map[string]operandKind{
	"$eq":            operandLiteral,
	"$ne":            operandLiteral,
	"$gt":            operandLiteral,
	"$gte":           operandLiteral,
	"$lt":            operandLiteral,
	"$lte":           operandLiteral,
	"$in":            operandLiteral,
	"$nin":           operandLiteral,
	"$all":           operandLiteral,
	"$size":          operandLiteral,
	"$mod":           operandLiteral,
	"$regex":         operandLiteral,
	"$options":       operandLiteral,
	"$exists":        operandLiteral,
	"$bitsAllSet":    operandLiteral,
	"$bitsAllClear":  operandLiteral,
	"$bitsAnySet":    operandLiteral,
	"$bitsAnyClear":  operandLiteral,
	"$maxDistance":   operandLiteral,
	"$minDistance":   operandLiteral,
	"$type":          operandStructural,
	"$not":           operandPredicate,
	"$elemMatch":     operandElemMatch,
	"$geoWithin":     operandLiteralDocument,
	"$geoIntersects": operandLiteralDocument,
	"$near":          operandLiteralDocument,
	"$nearSphere":    operandLiteralDocument,
}

// topLevelOperators are the operators allowed in place of a field path.
var topLevelOperators = map[string]operandKind{
	"$and":         operandFilterList,
	"$or":          operandFilterList,
	"$nor":         operandFilterList,
	"$expr":        operandExpression,
	"$text":        operandLiteralDocument,
	"$where":       operandLiteral,
	"$comment":     operandLiteral,
	"$jsonSchema":  operandLiteral,
	"$sampleRate":  operandLiteral,
	"$alwaysTrue":  operandStructural,
	"$alwaysFalse": operandStructural,
}

// Filter shapifies a match expression. Field paths and operator names are
// kept, literal operands are replaced with type tags, and implicit equality
// ({a: 5}) is written as {a: {$eq: "?number"}}. Field and clause order is
// preserved, so reordering sibling predicates yields a different shape.
func Filter(doc bson.D) (Value, error) {
	fields := make([]Entry, 0, len(doc))
	for _, e := range doc {
		var (
			v   Value
			err error
		)
		if strings.HasPrefix(e.Key, "$") {
			kind, ok := topLevelOperators[e.Key]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, e.Key)
			}
			v, err = shapifyOperand(e.Key, kind, e.Value)
		} else {
			v, err = predicate(e.Value)
		}
		if err != nil {
			return nil, err
		}
		fields = append(fields, Entry{Key: e.Key, Value: v})
	}
	return OrderedDocument{Fields: fields}, nil
}

// predicate shapifies the right-hand side of a field path.
func predicate(v any) (Value, error) {
	if d, ok := AsDocument(v); ok && isOperatorDocument(d) {
		fields := make([]Entry, 0, len(d))
		for _, e := range d {
			kind, ok := pathOperators[e.Key]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, e.Key)
			}
			sv, err := shapifyOperand(e.Key, kind, e.Value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, Entry{Key: e.Key, Value: sv})
		}
		return OrderedDocument{Fields: fields}, nil
	}

	op := "$eq"
	if _, ok := v.(primitive.Regex); ok {
		op = "$regex"
	}
	return OrderedDocument{Fields: []Entry{{Key: op, Value: Literal{Tag: TypeTag(v)}}}}, nil
}

func shapifyOperand(op string, kind operandKind, v any) (Value, error) {
	switch kind {
	case operandLiteral:
		return Literal{Tag: TypeTag(v)}, nil

	case operandStructural:
		return structural(v), nil

	case operandPredicate:
		if _, ok := v.(primitive.Regex); ok {
			return Literal{Tag: TagRegex}, nil
		}
		d, ok := AsDocument(v)
		if !ok || !isOperatorDocument(d) {
			return nil, fmt.Errorf("%w: %s expects an operator document", ErrInvalidValue, op)
		}
		return predicate(d)

	case operandElemMatch:
		d, ok := AsDocument(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a document", ErrInvalidValue, op)
		}
		if isOperatorDocument(d) {
			if _, logical := topLevelOperators[d[0].Key]; !logical {
				return predicate(d)
			}
		}
		return Filter(d)

	case operandFilterList:
		clauses, ok := asArray(v)
		if !ok || len(clauses) == 0 {
			return nil, fmt.Errorf("%w: %s expects a non-empty array", ErrInvalidValue, op)
		}
		elems := make([]Value, len(clauses))
		for i, c := range clauses {
			d, ok := AsDocument(c)
			if !ok {
				return nil, fmt.Errorf("%w: %s clause %d is not a document", ErrInvalidValue, op, i)
			}
			sv, err := Filter(d)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return Array{Elems: elems}, nil

	case operandExpression:
		return Expression(v)

	case operandLiteralDocument:
		if d, ok := AsDocument(v); ok {
			return literalDocument(d), nil
		}
		return Literal{Tag: TypeTag(v)}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}
}

// literalDocument keeps the keys of d and redacts every leaf value.
func literalDocument(d bson.D) OrderedDocument {
	fields := make([]Entry, len(d))
	for i, e := range d {
		if sub, ok := AsDocument(e.Value); ok && strings.HasPrefix(e.Key, "$") {
			fields[i] = Entry{Key: e.Key, Value: literalDocument(sub)}
			continue
		}
		fields[i] = Entry{Key: e.Key, Value: Literal{Tag: TypeTag(e.Value)}}
	}
	return OrderedDocument{Fields: fields}
}

func isOperatorDocument(d bson.D) bool {
	return len(d) > 0 && strings.HasPrefix(d[0].Key, "$")
}

func asArray(v any) ([]any, bool) {
	switch x := v.(type) {
	case bson.A:
		return x, true
	case []any:
		return x, true
	default:
		return nil, false
	}
}
