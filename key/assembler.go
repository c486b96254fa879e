package key

import (
	"fmt"
	"slices"

	"github.com/jonwraymond/querystats/classify"
	"github.com/jonwraymond/querystats/shape"
)

// outerFunc renders the raw value of an outer option.
type outerFunc func(raw any) shape.Value

// outerRules lists outer options that are not kept verbatim. Any outer option
// missing here is rendered with shape.Structural.
var outerRules = map[string]outerFunc{
	// comment is free-form user text.
	"comment": func(raw any) shape.Value { return shape.Literal{Tag: shape.TypeTag(raw)} },
	// hint key patterns name a concrete index; their field order matters.
	"hint": orderedVerbatim,
}

func orderedVerbatim(raw any) shape.Value {
	d, ok := shape.AsDocument(raw)
	if !ok {
		return shape.Structural(raw)
	}
	fields := make([]shape.Entry, len(d))
	for i, e := range d {
		fields[i] = shape.Entry{Key: e.Key, Value: shape.Structural(e.Value)}
	}
	return shape.OrderedDocument{Fields: fields}
}

// Options configures an Assembler.
type Options struct {
	// Registry defaults to classify.DefaultRegistry().
	Registry *classify.Registry
	// Strict rejects commands carrying options unknown to the registry.
	// When false such options are skipped.
	Strict bool
}

// Assembler builds query stats keys from requests.
//
// Contract:
//   - Concurrency: safe for concurrent use; Assemble has no side effects.
//   - Errors: unknown options (strict mode) wrap classify.ErrUnrecognizedOption;
//     any failure to produce the exact field set wraps ErrSchemaViolation.
type Assembler struct {
	registry *classify.Registry
	strict   bool
}

// NewAssembler creates an Assembler and checks that every registered command
// has a complete shapifier table.
func NewAssembler(opts Options) (*Assembler, error) {
	reg := opts.Registry
	if reg == nil {
		reg = classify.DefaultRegistry()
	}
	for _, cmd := range reg.Commands() {
		s, err := reg.Schema(cmd)
		if err != nil {
			return nil, err
		}
		if err := shape.CheckTable(s); err != nil {
			return nil, err
		}
	}
	return &Assembler{registry: reg, strict: opts.Strict}, nil
}

// Registry returns the registry the assembler classifies against.
func (a *Assembler) Registry() *classify.Registry {
	return a.registry
}

// Assemble classifies, shapifies and assembles the key of one request.
func (a *Assembler) Assemble(req Request, ectx ExecContext) (*QueryStatsKey, error) {
	if req.Command == "" || len(req.Body) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidRequest)
	}
	c, err := a.registry.Split(req.Command, req.Body, a.strict)
	if err != nil {
		return nil, err
	}
	qs, err := shape.Build(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	return Assemble(c, qs, ectx)
}

// Assemble combines a computed shape with the classified outer options and
// the execution context into a key. It fails with ErrSchemaViolation when the
// result would not hold exactly the schema's field sets.
func Assemble(c *classify.Classified, qs *shape.QueryShape, ectx ExecContext) (*QueryStatsKey, error) {
	s := c.Schema
	if qs == nil || qs.Command != s.Command {
		return nil, fmt.Errorf("%w: shape does not belong to %q", ErrSchemaViolation, s.Command)
	}
	if !slices.Equal(qs.Names(), s.ShapeFields) {
		return nil, fmt.Errorf("%w: %s: shape fields %v, want %v", ErrSchemaViolation, s.Command, qs.Names(), s.ShapeFields)
	}

	// Map each outer target back to the option that populates it.
	byTarget := make(map[string]string, len(c.Outer))
	for _, o := range s.Options {
		if o.Class != classify.OuterField {
			continue
		}
		if _, ok := c.Outer[o.Name]; ok {
			byTarget[o.TargetField()] = o.Name
		}
	}
	if len(byTarget) != len(c.Outer) {
		return nil, fmt.Errorf("%w: %s: outer options outside the schema", ErrSchemaViolation, s.Command)
	}

	k := &QueryStatsKey{Command: s.Command, Shape: qs, Outer: make([]shape.Field, 0, len(s.OuterFields)-1)}
	for _, name := range s.OuterFields {
		switch name {
		case classify.QueryShapeField:
			continue
		case "collectionType":
			k.Outer = append(k.Outer, shape.Field{Name: name, Value: shape.Constant{Value: string(ectx.collectionType())}})
			continue
		case "client":
			if ectx.Client != nil {
				k.Outer = append(k.Outer, shape.Field{Name: name, Value: shape.Structural(ectx.Client)})
			}
			continue
		}

		opt, ok := byTarget[name]
		if !ok {
			continue
		}
		raw := c.Outer[opt]
		render, ok := outerRules[name]
		if !ok {
			render = shape.Structural
		}
		k.Outer = append(k.Outer, shape.Field{Name: name, Value: render(raw)})
	}
	return k, nil
}
