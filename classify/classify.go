package classify

import (
	"fmt"
	"slices"
)

// Classification says where a command option lands in a query stats key.
type Classification int

const (
	// Ignored options never reach the key.
	Ignored Classification = iota
	// ShapeField options are shapified into the queryShape sub-document.
	ShapeField
	// OuterField options sit beside queryShape at the top level of the key.
	OuterField
)

// String returns the string representation of the classification.
func (c Classification) String() string {
	switch c {
	case Ignored:
		return "ignored"
	case ShapeField:
		return "shape"
	case OuterField:
		return "outer"
	default:
		return "unknown"
	}
}

// FieldSpec classifies one command option.
type FieldSpec struct {
	// Name is the option name as it appears in the command document.
	Name string
	// Class is where the option lands.
	Class Classification
	// Target is the key field the option populates. Empty means Name.
	Target string
}

// TargetField returns the key field populated by the option.
func (f FieldSpec) TargetField() string {
	if f.Target != "" {
		return f.Target
	}
	return f.Name
}

// Schema is the fixed key layout for one command type.
//
// Contract:
//   - ShapeFields and OuterFields are disjoint and ordered; the order is the
//     order of fields in the rendered key.
//   - OuterFields contains QueryShapeField.
//   - Every key field is produced by an option or listed in Derived.
type Schema struct {
	Command     string
	ShapeFields []string
	OuterFields []string
	Options     []FieldSpec
	// Derived lists key fields filled from execution context rather than options.
	Derived []string
}

// QueryShapeField is the name of the sub-document holding the shape.
const QueryShapeField = "queryShape"

// Validate checks the schema for internal consistency.
func (s Schema) Validate() error {
	if s.Command == "" {
		return fmt.Errorf("%w: command name is required", ErrInvalidSchema)
	}

	shape := make(map[string]bool, len(s.ShapeFields))
	for _, f := range s.ShapeFields {
		if shape[f] {
			return fmt.Errorf("%w: %s: duplicate shape field %q", ErrInvalidSchema, s.Command, f)
		}
		shape[f] = true
	}

	outer := make(map[string]bool, len(s.OuterFields))
	for _, f := range s.OuterFields {
		if outer[f] {
			return fmt.Errorf("%w: %s: duplicate outer field %q", ErrInvalidSchema, s.Command, f)
		}
		if shape[f] {
			return fmt.Errorf("%w: %s: field %q is both shape and outer", ErrInvalidSchema, s.Command, f)
		}
		outer[f] = true
	}
	if !outer[QueryShapeField] {
		return fmt.Errorf("%w: %s: outer fields must include %q", ErrInvalidSchema, s.Command, QueryShapeField)
	}

	produced := map[string]bool{QueryShapeField: true}
	for _, d := range s.Derived {
		if !shape[d] && !outer[d] {
			return fmt.Errorf("%w: %s: derived field %q is not a key field", ErrInvalidSchema, s.Command, d)
		}
		produced[d] = true
	}

	seen := make(map[string]bool, len(s.Options))
	for _, o := range s.Options {
		if seen[o.Name] {
			return fmt.Errorf("%w: %s: duplicate option %q", ErrInvalidSchema, s.Command, o.Name)
		}
		seen[o.Name] = true

		target := o.TargetField()
		switch o.Class {
		case ShapeField:
			if !shape[target] {
				return fmt.Errorf("%w: %s: option %q targets %q outside the shape", ErrInvalidSchema, s.Command, o.Name, target)
			}
		case OuterField:
			if !outer[target] || target == QueryShapeField {
				return fmt.Errorf("%w: %s: option %q targets %q outside the outer fields", ErrInvalidSchema, s.Command, o.Name, target)
			}
		case Ignored:
			continue
		default:
			return fmt.Errorf("%w: %s: option %q has classification %d", ErrInvalidSchema, s.Command, o.Name, o.Class)
		}
		produced[target] = true
	}

	for _, f := range slices.Concat(s.ShapeFields, s.OuterFields) {
		if !produced[f] {
			return fmt.Errorf("%w: %s: nothing produces key field %q", ErrInvalidSchema, s.Command, f)
		}
	}
	return nil
}

// IsShapeField reports whether name is one of the schema's shape fields.
func (s Schema) IsShapeField(name string) bool {
	return slices.Contains(s.ShapeFields, name)
}

// IsOuterField reports whether name is one of the schema's outer fields.
func (s Schema) IsOuterField(name string) bool {
	return slices.Contains(s.OuterFields, name)
}
