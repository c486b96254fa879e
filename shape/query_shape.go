package shape

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonwraymond/querystats/classify"
)

// Field is one named field of a QueryShape.
type Field struct {
	Name  string
	Value Value
}

// QueryShape is the shape of one command: exactly the schema's shape fields,
// in schema order. Options absent from the command are Unset.
type QueryShape struct {
	Command string
	Fields  []Field
}

// Get returns the value of a shape field.
func (q *QueryShape) Get(name string) (Value, bool) {
	for _, f := range q.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (q *QueryShape) Names() []string {
	out := make([]string, len(q.Fields))
	for i, f := range q.Fields {
		out[i] = f.Name
	}
	return out
}

// Document renders the shape as a bson document.
func (q *QueryShape) Document() bson.D {
	out := make(bson.D, len(q.Fields))
	for i, f := range q.Fields {
		out[i] = bson.E{Key: f.Name, Value: Render(f.Value)}
	}
	return out
}

// Equal reports whether two shapes are structurally equal.
func (q *QueryShape) Equal(o *QueryShape) bool {
	if q.Command != o.Command || len(q.Fields) != len(o.Fields) {
		return false
	}
	for i := range q.Fields {
		if q.Fields[i].Name != o.Fields[i].Name || !Equal(q.Fields[i].Value, o.Fields[i].Value) {
			return false
		}
	}
	return true
}

// FieldFunc shapifies the raw value of one option.
type FieldFunc func(raw any) (Value, error)

// Table lists the shapifier of every option-driven shape field of a command.
type Table map[string]FieldFunc

var tables = map[string]Table{
	"find": findTable,
}

// Build computes the query shape of a classified command.
func Build(c *classify.Classified) (*QueryShape, error) {
	command := c.Schema.Command
	table, ok := tables[command]
	if !ok {
		return nil, fmt.Errorf("%w: command %q", ErrNoShapifier, command)
	}

	q := &QueryShape{Command: command, Fields: make([]Field, 0, len(c.Schema.ShapeFields))}
	for _, name := range c.Schema.ShapeFields {
		var (
			v   Value
			err error
		)
		switch name {
		case "command":
			v = Constant{Value: command}
		case "cmdNs":
			v, err = namespace(c)
		default:
			fn, ok := table[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrNoShapifier, command, name)
			}
			raw, present := c.Shape[name]
			if !present {
				v = Unset{}
				break
			}
			v, err = fn(raw)
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", command, name, err)
		}
		q.Fields = append(q.Fields, Field{Name: name, Value: v})
	}
	return q, nil
}

// namespace builds cmdNs from the collection named by the command option and
// the $db envelope field.
func namespace(c *classify.Classified) (Value, error) {
	coll, ok := c.Shape[c.Schema.Command]
	if !ok {
		return nil, fmt.Errorf("%w: missing collection", ErrInvalidValue)
	}
	fields := make([]Entry, 0, 2)
	if db, ok := c.Shape["$db"]; ok {
		fields = append(fields, Entry{Key: "db", Value: Constant{Value: db}})
	}
	fields = append(fields, Entry{Key: "coll", Value: Constant{Value: coll}})
	return OrderedDocument{Fields: fields}, nil
}

// document adapts a document shapifier to a FieldFunc.
func document(name string, fn func(bson.D) (Value, error)) FieldFunc {
	return func(raw any) (Value, error) {
		d, err := asDocument(name, raw)
		if err != nil {
			return nil, err
		}
		return fn(d)
	}
}

// flag keeps a boolean control option verbatim.
func flag(name string) FieldFunc {
	return func(raw any) (Value, error) {
		if _, ok := raw.(bool); !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidValue, name, raw)
		}
		return Constant{Value: raw}, nil
	}
}

// count keeps a numeric control option such as skip or limit verbatim.
func count(name string) FieldFunc {
	return func(raw any) (Value, error) {
		if TypeTag(raw) != TagNumber {
			return nil, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidValue, name, raw)
		}
		return Constant{Value: raw}, nil
	}
}

// CheckTable verifies that every option-driven shape field of the schema has
// a shapifier, so that Build cannot fail for lack of one at request time.
func CheckTable(s classify.Schema) error {
	table, ok := tables[s.Command]
	if !ok {
		return fmt.Errorf("%w: command %q", ErrNoShapifier, s.Command)
	}
	for _, name := range s.ShapeFields {
		if name == "command" || name == "cmdNs" {
			continue
		}
		if _, ok := table[name]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrNoShapifier, s.Command, name)
		}
	}
	for name := range table {
		if !s.IsShapeField(name) {
			return fmt.Errorf("%w: %s.%s is not a shape field", ErrNoShapifier, s.Command, name)
		}
	}
	return nil
}
