package key

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonwraymond/querystats/classify"
	"github.com/jonwraymond/querystats/shape"
)

// QueryStatsKey is the aggregation key of one command.
//
// Contract:
//   - Shape holds exactly the schema's shape fields.
//   - Outer holds, in schema order, the outer fields the request supplied
//     plus derived fields; queryShape itself is not listed in Outer.
//   - Immutable after assembly.
type QueryStatsKey struct {
	Command string
	Shape   *shape.QueryShape
	Outer   []shape.Field
}

// Get returns the value of an outer field.
func (k *QueryStatsKey) Get(name string) (shape.Value, bool) {
	for _, f := range k.Outer {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// FieldNames returns the top-level field names in order, queryShape first.
func (k *QueryStatsKey) FieldNames() []string {
	out := make([]string, 0, len(k.Outer)+1)
	out = append(out, classify.QueryShapeField)
	for _, f := range k.Outer {
		out = append(out, f.Name)
	}
	return out
}

// Document renders the key as the nested document handed to reporting:
// {queryShape: {...}, <outer fields>}.
func (k *QueryStatsKey) Document() bson.D {
	out := make(bson.D, 0, len(k.Outer)+1)
	out = append(out, bson.E{Key: classify.QueryShapeField, Value: k.Shape.Document()})
	for _, f := range k.Outer {
		out = append(out, bson.E{Key: f.Name, Value: shape.Render(f.Value)})
	}
	return out
}

// Equal reports whether two keys are structurally equal.
func (k *QueryStatsKey) Equal(o *QueryStatsKey) bool {
	if k.Command != o.Command || len(k.Outer) != len(o.Outer) || !k.Shape.Equal(o.Shape) {
		return false
	}
	for i := range k.Outer {
		if k.Outer[i].Name != o.Outer[i].Name || !shape.Equal(k.Outer[i].Value, o.Outer[i].Value) {
			return false
		}
	}
	return true
}
