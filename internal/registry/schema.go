package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/synthome-dev/synthome/internal/domain"
)

// FieldType enumerates the value kinds a model schema can declare.
type FieldType string

const (
	FieldString     FieldType = "string"
	FieldNumber     FieldType = "number"
	FieldBool       FieldType = "bool"
	FieldStringList FieldType = "stringList"
)

// Field declares validation rules for one model parameter.
type Field struct {
	Type     FieldType
	Required bool
	Enum     []string
	Min      float64
	Max      float64
	HasRange bool
}

// Schema is the per-model parameter contract. Unknown keys are rejected so a
// typo fails loudly instead of being silently ignored by a provider.
type Schema struct {
	Fields map[string]Field
}

// Validate coerces raw parameters against the schema. Any mismatch is a
// non-retryable validation error naming every offending field.
func (s Schema) Validate(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	var problems []string

	for name, field := range s.Fields {
		v, present := raw[name]
		if !present || v == nil {
			if field.Required {
				problems = append(problems, fmt.Sprintf("%s: required", name))
			}
			continue
		}
		coerced, err := coerce(field, v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		out[name] = coerced
	}

	for name := range raw {
		if _, known := s.Fields[name]; !known {
			problems = append(problems, fmt.Sprintf("%s: unknown parameter", name))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, domain.NewError(domain.KindValidation, "", "invalid parameters: %s", strings.Join(problems, "; "))
	}
	return out, nil
}

func coerce(field Field, v any) (any, error) {
	switch field.Type {
	case FieldString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		if len(field.Enum) > 0 && !enumContains(field.Enum, s) {
			return nil, fmt.Errorf("%q not one of %s", s, strings.Join(field.Enum, "|"))
		}
		return s, nil
	case FieldNumber:
		n, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if field.HasRange && (n < field.Min || n > field.Max) {
			return nil, fmt.Errorf("%v outside [%v, %v]", n, field.Min, field.Max)
		}
		return n, nil
	case FieldBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case FieldStringList:
		switch list := v.(type) {
		case []string:
			return list, nil
		case []any:
			out := make([]string, 0, len(list))
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected string list, got %T element", item)
				}
				out = append(out, s)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("expected string list, got %T", v)
		}
	default:
		return nil, fmt.Errorf("unsupported field type %q", field.Type)
	}
}

// toFloat accepts the numeric representations JSON decoding and callers
// produce.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func enumContains(enum []string, v string) bool {
	for _, e := range enum {
		if e == v {
			return true
		}
	}
	return false
}
