package classify

import (
	"fmt"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// Registry maps command types to their schemas.
//
// Contract:
//   - Concurrency: a Registry is immutable after construction and safe for
//     concurrent use.
//   - Errors: lookups on unknown commands return ErrUnknownCommand, lookups of
//     unknown options return ErrUnrecognizedOption.
type Registry struct {
	schemas map[string]*compiledSchema
}

type compiledSchema struct {
	schema  Schema
	options map[string]FieldSpec
}

// NewRegistry validates the given schemas and builds a registry from them.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*compiledSchema, len(schemas))}
	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.schemas[s.Command]; dup {
			return nil, fmt.Errorf("%w: duplicate schema for %q", ErrInvalidSchema, s.Command)
		}
		cs := &compiledSchema{schema: s, options: make(map[string]FieldSpec, len(s.Options))}
		for _, o := range s.Options {
			cs.options[o.Name] = o
		}
		r.schemas[s.Command] = cs
	}
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the registry of built-in command schemas.
// It panics if the built-in table is inconsistent.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(builtinSchemas...)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Schema returns the schema for a command type.
func (r *Registry) Schema(command string) (Schema, error) {
	cs, ok := r.schemas[command]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	return cs.schema, nil
}

// Commands returns the registered command types in sorted order.
func (r *Registry) Commands() []string {
	out := make([]string, 0, len(r.schemas))
	for c := range r.schemas {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Classify returns the classification of an option for a command type.
func (r *Registry) Classify(command, option string) (Classification, error) {
	cs, ok := r.schemas[command]
	if !ok {
		return Ignored, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	spec, ok := cs.options[option]
	if !ok {
		return Ignored, fmt.Errorf("%w: %s.%s", ErrUnrecognizedOption, command, option)
	}
	return spec.Class, nil
}

// Classified holds the options of one request bucketed by classification.
// Values are the raw option values from the command document.
type Classified struct {
	Schema Schema
	// Shape holds shape options keyed by option name.
	Shape map[string]any
	// Outer holds outer options keyed by option name.
	Outer map[string]any
	// Ignored lists recognized options that were dropped.
	Ignored []string
	// Unrecognized lists options without a registry entry (lenient mode only).
	Unrecognized []string
}

// Has reports whether a shape or outer option was supplied.
func (c *Classified) Has(option string) bool {
	if _, ok := c.Shape[option]; ok {
		return true
	}
	_, ok := c.Outer[option]
	return ok
}

// Split buckets the options of a command document. In strict mode an option
// without a registry entry fails the split; otherwise it is skipped and listed
// in Classified.Unrecognized.
func (r *Registry) Split(command string, doc bson.D, strict bool) (*Classified, error) {
	cs, ok := r.schemas[command]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}

	c := &Classified{
		Schema: cs.schema,
		Shape:  make(map[string]any, len(cs.schema.ShapeFields)),
		Outer:  make(map[string]any, len(cs.schema.OuterFields)),
	}
	for _, e := range doc {
		spec, ok := cs.options[e.Key]
		if !ok {
			if strict {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnrecognizedOption, command, e.Key)
			}
			c.Unrecognized = append(c.Unrecognized, e.Key)
			continue
		}
		if c.Has(e.Key) {
			return nil, fmt.Errorf("%w: %s: duplicate option %q", ErrInvalidOption, command, e.Key)
		}
		switch spec.Class {
		case ShapeField:
			c.Shape[e.Key] = e.Value
		case OuterField:
			c.Outer[e.Key] = e.Value
		default:
			c.Ignored = append(c.Ignored, e.Key)
		}
	}
	return c, nil
}
