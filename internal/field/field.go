package field

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Kind is the wire type a field accepts.
type Kind string

// Supported kinds.
const (
	KindString     Kind = "string"
	KindInteger    Kind = "integer"
	KindNumber     Kind = "number"
	KindBoolean    Kind = "boolean"
	KindPrimaryKey Kind = "primary_key"
	KindArray      Kind = "array"
	KindObject     Kind = "object"
	KindAny        Kind = "any"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func rulesValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Field is a declarative constraint set for one serializable attribute.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Nullable bool
	// Blank allows the empty string for string kinds.
	Blank   bool
	Choices []any
	// Default is used when the attribute is absent. DefaultFunc wins when set.
	Default     any
	DefaultFunc func() any
	// Rules is a go-playground/validator tag applied after the kind check,
	// e.g. "email" or "min=3,max=64".
	Rules string
	// ReadOnly fields are serialized but never accepted from clients.
	ReadOnly bool

	hasDefault bool
}

// Option configures a Field.
type Option func(*Field)

// Required marks the field as mandatory in full (non-partial) validation.
func Required() Option { return func(f *Field) { f.Required = true } }

// Nullable accepts null and absence.
func Nullable() Option { return func(f *Field) { f.Nullable = true } }

// Blank accepts the empty string.
func Blank() Option { return func(f *Field) { f.Blank = true } }

// Choices restricts the value to the given set.
func Choices(values ...any) Option {
	return func(f *Field) { f.Choices = append([]any(nil), values...) }
}

// Default sets a constant default value.
func Default(v any) Option {
	return func(f *Field) {
		f.Default = v
		f.hasDefault = true
	}
}

// DefaultFunc sets a default factory evaluated once per document.
func DefaultFunc(fn func() any) Option {
	return func(f *Field) {
		f.DefaultFunc = fn
		f.hasDefault = fn != nil
	}
}

// Rules attaches validator tags checked after the kind check.
func Rules(tag string) Option { return func(f *Field) { f.Rules = tag } }

// ReadOnly excludes the field from client input.
func ReadOnly() Option { return func(f *Field) { f.ReadOnly = true } }

// New builds a field of the given kind.
func New(name string, kind Kind, opts ...Option) *Field {
	f := &Field{Name: name, Kind: kind}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// String declares a string field.
func String(name string, opts ...Option) *Field { return New(name, KindString, opts...) }

// Integer declares an integer field. Values are normalized to int64.
func Integer(name string, opts ...Option) *Field { return New(name, KindInteger, opts...) }

// Number declares a floating point field. Values are normalized to float64.
func Number(name string, opts ...Option) *Field { return New(name, KindNumber, opts...) }

// Boolean declares a boolean field.
func Boolean(name string, opts ...Option) *Field { return New(name, KindBoolean, opts...) }

// Array declares a JSON array field.
func Array(name string, opts ...Option) *Field { return New(name, KindArray, opts...) }

// Object declares a JSON object field.
func Object(name string, opts ...Option) *Field { return New(name, KindObject, opts...) }

// Any declares a field accepting any JSON value.
func Any(name string, opts ...Option) *Field { return New(name, KindAny, opts...) }

// PrimaryKey declares the identity field. Unless overridden it defaults to a
// random UUID string.
func PrimaryKey(name string, opts ...Option) *Field {
	base := []Option{DefaultFunc(func() any { return uuid.NewString() })}
	return New(name, KindPrimaryKey, append(base, opts...)...)
}

// HasDefault reports whether a default value or factory is configured.
func (f *Field) HasDefault() bool {
	return f.hasDefault
}

// DefaultValue evaluates the default. It returns nil when none is configured.
func (f *Field) DefaultValue() any {
	if f.DefaultFunc != nil {
		return f.DefaultFunc()
	}
	return f.Default
}

// Validate checks a candidate value. present is false when the attribute was
// absent from the input; absence is treated like null unless a default exists.
func (f *Field) Validate(value any, present bool) error {
	if !present || value == nil {
		return f.validateMissing(present)
	}

	if err := f.validateKind(value); err != nil {
		return err
	}

	if s, ok := value.(string); ok && s == "" && f.isStringKind() && (!f.Blank || f.Kind == KindPrimaryKey) {
		return newError(f, CodeBlank, "Blank value not allowed")
	}

	if len(f.Choices) > 0 && !f.inChoices(value) {
		return newError(f, CodeChoice, "Invalid choice %v: must be one of %v", value, f.Choices)
	}

	if f.Rules != "" {
		if err := rulesValidator().Var(value, f.Rules); err != nil {
			return newError(f, CodeRule, "Invalid value: %s", ruleMessage(err, f.Rules))
		}
	}

	return nil
}

func (f *Field) validateMissing(present bool) error {
	switch {
	case !present && f.hasDefault:
		return nil
	case !present && f.Required:
		return newError(f, CodeRequired, "Required value")
	case f.Nullable:
		return nil
	case f.Required:
		return newError(f, CodeRequired, "Required value")
	default:
		return newError(f, CodeNull, "Value cannot be null")
	}
}

func (f *Field) isStringKind() bool {
	return f.Kind == KindString || f.Kind == KindPrimaryKey
}

func (f *Field) validateKind(value any) error {
	switch f.Kind {
	case KindString, KindPrimaryKey:
		if _, ok := value.(string); !ok {
			return newError(f, CodeType, "Invalid value: expected string, got %s", typeName(value))
		}
	case KindInteger:
		n, ok := toFloat(value)
		if !ok || n != math.Trunc(n) {
			return newError(f, CodeType, "Invalid value: expected integer, got %s", typeName(value))
		}
		if _, ok := toInt64(value); !ok {
			return newError(f, CodeType, "Invalid value: integer out of range")
		}
	case KindNumber:
		if _, ok := toFloat(value); !ok {
			return newError(f, CodeType, "Invalid value: expected number, got %s", typeName(value))
		}
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			return newError(f, CodeType, "Invalid value: expected boolean, got %s", typeName(value))
		}
	case KindArray:
		if v := reflect.ValueOf(value); v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return newError(f, CodeType, "Invalid value: expected array, got %s", typeName(value))
		}
	case KindObject:
		if reflect.ValueOf(value).Kind() != reflect.Map {
			return newError(f, CodeType, "Invalid value: expected object, got %s", typeName(value))
		}
	}
	return nil
}

func (f *Field) inChoices(value any) bool {
	for _, choice := range f.Choices {
		if Equal(choice, value) {
			return true
		}
	}
	return false
}

// Clean normalizes a validated value to its canonical Go representation:
// integers become int64 and numbers float64. Other values are returned as-is.
func (f *Field) Clean(value any) any {
	if value == nil {
		return nil
	}
	switch f.Kind {
	case KindInteger:
		if n, ok := toInt64(value); ok {
			return n
		}
	case KindNumber:
		if n, ok := toFloat(value); ok {
			return n
		}
	}
	return value
}

// Parse converts a raw string (a path or query parameter) into the field's kind.
func (f *Field) Parse(raw string) (any, error) {
	switch f.Kind {
	case KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, newError(f, CodeType, "Invalid value: expected integer")
		}
		return n, nil
	case KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, newError(f, CodeType, "Invalid value: expected number")
		}
		return n, nil
	case KindBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, newError(f, CodeType, "Invalid value: expected boolean")
		}
		return b, nil
	default:
		return raw, nil
	}
}

// Equal compares two decoded JSON values, treating all numeric types alike.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// maxExactInteger bounds the integers a float64 represents without rounding.
// Decoded JSON numbers are float64, so larger magnitudes may already have
// lost precision.
const maxExactInteger = 1 << 53

// toInt64 converts value to an int64 without wrapping or rounding.
func toInt64(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return exactInt64(f)
	case float32:
		return exactInt64(float64(n))
	case float64:
		return exactInt64(n)
	default:
		return 0, false
	}
}

func exactInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || math.Abs(f) > maxExactInteger {
		return 0, false
	}
	return int64(f), true
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func typeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := toFloat(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}

func ruleMessage(err error, rules string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s", fe.Tag())
	}
	return fmt.Sprintf("failed %s", rules)
}
