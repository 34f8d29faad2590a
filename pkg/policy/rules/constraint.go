package rules

import (
	"fmt"
)

// Constraint is the requirement a matched rule enforces against a resolved
// context value. The dynamic map/bool/number shapes accepted in rule
// definitions are resolved into one of the concrete constraint types exactly
// once, at load time.
type Constraint interface {
	// Check reports whether the constraint is satisfied by the resolved
	// value. present is false when the path could not be resolved in the
	// context; an absent value never satisfies a constraint (cannot verify
	// means assume violation).
	Check(value any, present bool) bool

	// String returns a short description used in validation errors and
	// admin output.
	String() string
}

// RangeConstraint requires the resolved value to fall within [Min, Max].
// Either bound may be omitted. Boundary values satisfy the constraint.
type RangeConstraint struct {
	Min *float64
	Max *float64
}

func (c *RangeConstraint) Check(value any, present bool) bool {
	if !present {
		return false
	}
	n, err := toFloat64(value)
	if err != nil {
		return false
	}
	if c.Min != nil && n < *c.Min {
		return false
	}
	if c.Max != nil && n > *c.Max {
		return false
	}
	return true
}

func (c *RangeConstraint) String() string {
	switch {
	case c.Min != nil && c.Max != nil:
		return fmt.Sprintf("range[%v, %v]", *c.Min, *c.Max)
	case c.Min != nil:
		return fmt.Sprintf("range[%v, +inf]", *c.Min)
	case c.Max != nil:
		return fmt.Sprintf("range[-inf, %v]", *c.Max)
	default:
		return "range[unbounded]"
	}
}

// EqualityConstraint requires the resolved value to equal (or, when Negate
// is set, not equal) the expected value.
type EqualityConstraint struct {
	Expected any
	Negate   bool
}

func (c *EqualityConstraint) Check(value any, present bool) bool {
	if !present {
		return false
	}
	equal := looseEqual(value, c.Expected)
	if c.Negate {
		return !equal
	}
	return equal
}

func (c *EqualityConstraint) String() string {
	if c.Negate {
		return fmt.Sprintf("neq %v", c.Expected)
	}
	return fmt.Sprintf("eq %v", c.Expected)
}

// BoolConstraint requires the resolved value to equal the expected boolean.
type BoolConstraint struct {
	Expected bool
}

func (c *BoolConstraint) Check(value any, present bool) bool {
	if !present {
		return false
	}
	b, ok := value.(bool)
	return ok && b == c.Expected
}

func (c *BoolConstraint) String() string {
	return fmt.Sprintf("bool %v", c.Expected)
}

// UpperBoundConstraint is the numeric shorthand: a bare number in a rule
// definition means "fail when the resolved value exceeds this limit".
// A value exactly at the limit passes.
type UpperBoundConstraint struct {
	Limit float64
}

func (c *UpperBoundConstraint) Check(value any, present bool) bool {
	if !present {
		return false
	}
	n, err := toFloat64(value)
	if err != nil {
		return false
	}
	return n <= c.Limit
}

func (c *UpperBoundConstraint) String() string {
	return fmt.Sprintf("max %v", c.Limit)
}

// ValueConstraint is the fallback for non-numeric, non-boolean scalars:
// plain equality against the expected value.
type ValueConstraint struct {
	Expected any
}

func (c *ValueConstraint) Check(value any, present bool) bool {
	if !present {
		return false
	}
	return looseEqual(value, c.Expected)
}

func (c *ValueConstraint) String() string {
	return fmt.Sprintf("value %v", c.Expected)
}

// ParseConstraint resolves a raw constraint definition into a concrete
// Constraint. Recognized shapes, in order:
//
//   - map with "min" and/or "max" keys  -> RangeConstraint
//   - map with "eq" or "neq" key        -> EqualityConstraint
//   - bool                              -> BoolConstraint
//   - number                            -> UpperBoundConstraint
//   - anything else scalar              -> ValueConstraint
//
// Malformed shapes (an empty map, a map with unknown keys, non-numeric
// range bounds) return a *ConfigError.
func ParseConstraint(raw any) (Constraint, error) {
	switch v := raw.(type) {
	case nil:
		return nil, &ConfigError{Message: "constraint cannot be nil"}

	case map[string]any:
		return parseMapConstraint(v)

	case bool:
		return &BoolConstraint{Expected: v}, nil

	default:
		if n, err := toFloat64(raw); err == nil {
			return &UpperBoundConstraint{Limit: n}, nil
		}
		return &ValueConstraint{Expected: raw}, nil
	}
}

// parseMapConstraint handles the range and eq/neq map shapes.
func parseMapConstraint(m map[string]any) (Constraint, error) {
	if len(m) == 0 {
		return nil, &ConfigError{Message: "constraint map cannot be empty"}
	}

	_, hasMin := m["min"]
	_, hasMax := m["max"]
	if hasMin || hasMax {
		rc := &RangeConstraint{}
		for key, val := range m {
			switch key {
			case "min":
				n, err := toFloat64(val)
				if err != nil {
					return nil, &ConfigError{Message: fmt.Sprintf("range min is not numeric: %v", val)}
				}
				rc.Min = &n
			case "max":
				n, err := toFloat64(val)
				if err != nil {
					return nil, &ConfigError{Message: fmt.Sprintf("range max is not numeric: %v", val)}
				}
				rc.Max = &n
			default:
				return nil, &ConfigError{Message: fmt.Sprintf("unknown range constraint key %q", key)}
			}
		}
		if rc.Min != nil && rc.Max != nil && *rc.Min > *rc.Max {
			return nil, &ConfigError{Message: fmt.Sprintf("range min %v exceeds max %v", *rc.Min, *rc.Max)}
		}
		return rc, nil
	}

	if eq, ok := m["eq"]; ok {
		if len(m) != 1 {
			return nil, &ConfigError{Message: "eq constraint cannot carry additional keys"}
		}
		return &EqualityConstraint{Expected: eq}, nil
	}
	if neq, ok := m["neq"]; ok {
		if len(m) != 1 {
			return nil, &ConfigError{Message: "neq constraint cannot carry additional keys"}
		}
		return &EqualityConstraint{Expected: neq, Negate: true}, nil
	}

	return nil, &ConfigError{Message: fmt.Sprintf("unrecognized constraint shape: %v", m)}
}

// toFloat64 converts numeric values of any Go numeric type to float64.
func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

// looseEqual compares two values with numeric coercion, so an int 1000 from
// a caller-supplied context equals a float64 1000 parsed from YAML.
func looseEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	an, aerr := toFloat64(a)
	bn, berr := toFloat64(b)
	if aerr == nil && berr == nil {
		return an == bn
	}
	return a == b
}
