package shape

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Type tags used in place of redacted literals.
const (
	TagNumber              = "?number"
	TagString              = "?string"
	TagBool                = "?bool"
	TagNull                = "?null"
	TagObject              = "?object"
	TagObjectID            = "?objectId"
	TagDate                = "?date"
	TagTimestamp           = "?timestamp"
	TagBinData             = "?binData"
	TagRegex               = "?regex"
	TagMinKey              = "?minKey"
	TagMaxKey              = "?maxKey"
	TagUndefined           = "?undefined"
	TagJavaScript          = "?javascript"
	TagJavaScriptWithScope = "?javascriptWithScope"
	TagSymbol              = "?symbol"
	TagDBPointer           = "?dbPointer"
	TagUnknown             = "?unknown"
)

// TypeTag returns the redaction tag for a literal value. Arrays are tagged
// "?array<?T>" when every element shares tag ?T, and "?array<>" when empty or
// heterogeneous.
func TypeTag(v any) string {
	switch x := v.(type) {
	case nil, primitive.Null:
		return TagNull
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, primitive.Decimal128:
		return TagNumber
	case string:
		return TagString
	case bool:
		return TagBool
	case bson.D, bson.M, map[string]any, bson.Raw:
		return TagObject
	case bson.A:
		return arrayTag(x)
	case []any:
		return arrayTag(x)
	case primitive.ObjectID:
		return TagObjectID
	case primitive.DateTime, time.Time:
		return TagDate
	case primitive.Timestamp:
		return TagTimestamp
	case primitive.Binary:
		return TagBinData
	case primitive.Regex:
		return TagRegex
	case primitive.MinKey:
		return TagMinKey
	case primitive.MaxKey:
		return TagMaxKey
	case primitive.Undefined:
		return TagUndefined
	case primitive.JavaScript:
		return TagJavaScript
	case primitive.CodeWithScope:
		return TagJavaScriptWithScope
	case primitive.Symbol:
		return TagSymbol
	case primitive.DBPointer:
		return TagDBPointer
	default:
		return TagUnknown
	}
}

func arrayTag[S ~[]any](elems S) string {
	if len(elems) == 0 {
		return "?array<>"
	}
	first := elementTag(elems[0])
	for _, e := range elems[1:] {
		if elementTag(e) != first {
			return "?array<>"
		}
	}
	return "?array<" + first + ">"
}

// elementTag collapses nested arrays to "?array" so tags stay one level deep.
func elementTag(v any) string {
	switch v.(type) {
	case bson.A, []any:
		return "?array"
	default:
		return TypeTag(v)
	}
}
