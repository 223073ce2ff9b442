// Package validate cleans single field values taken from legacy rows.
//
// Every validator returns a Result: the cleaned value plus any non-fatal
// warnings describing corrections that were applied (truncation, default
// substitution, dropped optional values). Only validators for required fields
// also return an error, and that error is always a *FatalError. Callers can
// therefore tell "cleaned with warnings" apart from "row must be rejected"
// without relying on log side effects.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Result is a cleaned field value together with the corrections applied to it.
type Result[T any] struct {
	Value    T
	Warnings []string
}

// Clean builds a Result, dropping empty warning strings.
func Clean[T any](value T, warnings ...string) Result[T] {
	r := Result[T]{Value: value}
	for _, w := range warnings {
		if w != "" {
			r.Warnings = append(r.Warnings, w)
		}
	}
	return r
}

// FatalError reports a value that cannot be corrected.
type FatalError struct {
	Reason string
	Value  any
}

func (e *FatalError) Error() string {
	if e.Value == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s (got %q)", e.Reason, fmt.Sprint(e.Value))
}

func fatal(reason string, value any) error {
	return &FatalError{Reason: reason, Value: value}
}

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	phonePattern    = regexp.MustCompile(`^[0-9+\-() ]+$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Permitted roles. Anything else falls back to RoleDefault.
var Roles = []string{"admin", "manager", "user"}

const (
	RoleDefault     = "user"
	CountryDefault  = "US"
	CurrencyDefault = "USD"
)

// ========================================
// Strings
// ========================================

// String trims raw and truncates it to max runes. A nil value becomes "".
func String(raw any, max int) Result[string] {
	s, _ := Text(raw)
	s = strings.TrimSpace(s)
	out, warning := truncate(s, max)
	return Clean(out, warning)
}

// OptionalString behaves like String but maps absent or blank values to nil.
func OptionalString(raw any, max int) Result[*string] {
	s, ok := Text(raw)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return Result[*string]{}
	}
	out, warning := truncate(s, max)
	return Clean(&out, warning)
}

// RequiredString behaves like String but rejects absent or blank values.
func RequiredString(raw any, max int) (Result[string], error) {
	r := String(raw, max)
	if r.Value == "" {
		return r, fatal("required value is missing", nil)
	}
	return r, nil
}

func truncate(s string, max int) (string, string) {
	if max <= 0 {
		return s, ""
	}
	n := utf8.RuneCountInString(s)
	if n <= max {
		return s, ""
	}
	return string([]rune(s)[:max]), fmt.Sprintf("truncated from %d to %d characters", n, max)
}

// ========================================
// Identity fields
// ========================================

// Email validates a required email address of the form local@domain.tld.
func Email(raw any) (Result[string], error) {
	s, _ := Text(raw)
	s = strings.TrimSpace(s)
	if s == "" {
		return Result[string]{}, fatal("email is required", nil)
	}
	if !emailPattern.MatchString(s) {
		return Result[string]{}, fatal("invalid email format", s)
	}
	return Clean(s), nil
}

// OptionalEmail keeps a well-formed address and drops anything else to nil.
func OptionalEmail(raw any) Result[*string] {
	s, _ := Text(raw)
	s = strings.TrimSpace(s)
	if s == "" {
		return Result[*string]{}
	}
	if !emailPattern.MatchString(s) {
		return Clean[*string](nil, fmt.Sprintf("invalid email %q dropped", s))
	}
	return Clean(&s)
}

// Username validates a required username made of letters, digits and underscores.
func Username(raw any) (Result[string], error) {
	s, _ := Text(raw)
	s = strings.TrimSpace(s)
	if s == "" {
		return Result[string]{}, fatal("username is required", nil)
	}
	if !usernamePattern.MatchString(s) {
		return Result[string]{}, fatal("invalid username format", s)
	}
	return Clean(s), nil
}

// Role lower-cases raw and falls back to RoleDefault when it is not permitted.
func Role(raw any) Result[string] {
	s, _ := Text(raw)
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range Roles {
		if s == r {
			return Clean(s)
		}
	}
	return Clean(RoleDefault, fmt.Sprintf("invalid role %q replaced with %q", s, RoleDefault))
}

// Phone keeps an optional phone number made of digits, spaces and + - ( ).
// Anything else is dropped to nil with a warning.
func Phone(raw any, max int) Result[*string] {
	s, _ := Text(raw)
	s = strings.TrimSpace(s)
	if s == "" {
		return Result[*string]{}
	}
	if !phonePattern.MatchString(s) {
		return Clean[*string](nil, fmt.Sprintf("invalid phone %q dropped", s))
	}
	out, warning := truncate(s, max)
	return Clean(&out, warning)
}

// Country upper-cases a two letter country code, defaulting to CountryDefault.
func Country(raw any) Result[string] {
	s, _ := Text(raw)
	s = strings.ToUpper(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) == 2 {
		return Clean(s)
	}
	if s == "" {
		return Clean(CountryDefault)
	}
	return Clean(CountryDefault, fmt.Sprintf("invalid country %q replaced with %q", s, CountryDefault))
}

// CurrencyCode upper-cases a three letter ISO currency code, defaulting to CurrencyDefault.
func CurrencyCode(raw any) Result[string] {
	s, _ := Text(raw)
	s = strings.ToUpper(strings.TrimSpace(s))
	if currencyPattern.MatchString(s) {
		return Clean(s)
	}
	if s == "" {
		return Clean(CurrencyDefault)
	}
	return Clean(CurrencyDefault, fmt.Sprintf("invalid currency %q replaced with %q", s, CurrencyDefault))
}

// ========================================
// Enumerations
// ========================================

// Enum matches raw case-insensitively against allowed and returns the
// canonical allowed spelling. Unmatched values become fallback.
func Enum(raw any, allowed []string, fallback string) Result[string] {
	s, _ := Text(raw)
	s = strings.TrimSpace(s)
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return Clean(a)
		}
	}
	if s == "" {
		return Clean(fallback, fmt.Sprintf("missing value replaced with %q", fallback))
	}
	return Clean(fallback, fmt.Sprintf("invalid value %q replaced with %q", s, fallback))
}

// Fixed value sets for enumerated columns.
var (
	InvoiceStatuses = []string{"draft", "sent", "paid", "overdue", "cancelled"}
	InvoiceTypes    = []string{"invoice", "quote", "credit_note"}
	EmailStatuses   = []string{"not_sent", "sent", "delivered", "bounced", "failed"}
	TemplateTypes   = []string{"invoice", "quote", "email"}
)

// InvoiceStatus cleans an invoice status, defaulting to "draft".
func InvoiceStatus(raw any) Result[string] { return Enum(raw, InvoiceStatuses, "draft") }

// InvoiceType cleans an invoice type, defaulting to "invoice".
func InvoiceType(raw any) Result[string] { return Enum(raw, InvoiceTypes, "invoice") }

// EmailStatus cleans an invoice email delivery status, defaulting to "not_sent".
func EmailStatus(raw any) Result[string] { return Enum(raw, EmailStatuses, "not_sent") }

// TemplateType cleans a template type, defaulting to "invoice".
func TemplateType(raw any) Result[string] { return Enum(raw, TemplateTypes, "invoice") }

// ========================================
// Numbers
// ========================================

// Amount parses a currency amount. Unparseable input becomes 0, negative
// values are clamped to 0, and the result is rounded to 2 decimal places.
func Amount(raw any) Result[float64] {
	if raw == nil {
		return Clean(0.0)
	}
	v, ok := toFloat(raw)
	if !ok {
		s, _ := Text(raw)
		if strings.TrimSpace(s) == "" {
			return Clean(0.0)
		}
		return Clean(0.0, fmt.Sprintf("unparseable amount %q replaced with 0", s))
	}
	if v < 0 {
		return Clean(0.0, fmt.Sprintf("negative amount %s clamped to 0", strconv.FormatFloat(v, 'f', -1, 64)))
	}
	return Clean(RoundCents(v))
}

// RoundCents rounds v half away from zero to 2 decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func toFloat(raw any) (float64, bool) {
	var v float64
	switch t := raw.(type) {
	case float64:
		v = t
	case float32:
		v = float64(t)
	case int64:
		v = float64(t)
	case int:
		v = float64(t)
	case int32:
		v = float64(t)
	default:
		s, ok := Text(raw)
		if !ok {
			return 0, false
		}
		s = strings.TrimSpace(s)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v = f
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Int coerces raw to an integer, defaulting to 0 with a warning.
func Int(raw any) Result[int64] {
	if raw == nil {
		return Clean[int64](0)
	}
	v, ok := toInt(raw)
	if !ok {
		s, _ := Text(raw)
		return Clean[int64](0, fmt.Sprintf("invalid integer %q replaced with 0", s))
	}
	return Clean(v)
}

// OptionalInt coerces raw to an integer, mapping absent or invalid values to nil.
func OptionalInt(raw any) Result[*int64] {
	s, _ := Text(raw)
	if raw == nil || strings.TrimSpace(s) == "" {
		return Result[*int64]{}
	}
	v, ok := toInt(raw)
	if !ok {
		return Clean[*int64](nil, fmt.Sprintf("invalid integer %q dropped", s))
	}
	return Clean(&v)
}

// RequiredInt coerces raw to an integer and rejects absent or invalid values.
func RequiredInt(raw any) (Result[int64], error) {
	s, _ := Text(raw)
	if raw == nil || strings.TrimSpace(s) == "" {
		return Result[int64]{}, fatal("required integer is missing", nil)
	}
	v, ok := toInt(raw)
	if !ok {
		return Result[int64]{}, fatal("invalid integer", s)
	}
	return Clean(v), nil
}

func toInt(raw any) (int64, bool) {
	switch t := raw.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, false
		}
		return int64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	s, ok := Text(raw)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Bool maps truthy representations to 1 and everything else to 0.
func Bool(raw any) Result[int64] {
	switch t := raw.(type) {
	case nil:
		return Clean[int64](0)
	case bool:
		if t {
			return Clean[int64](1)
		}
		return Clean[int64](0)
	case int64:
		if t == 0 || t == 1 {
			return Clean(t)
		}
	}
	s, _ := Text(raw)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return Clean[int64](1)
	case "0", "false", "no", "n", "off", "":
		return Clean[int64](0)
	}
	return Clean[int64](0, fmt.Sprintf("invalid boolean %q replaced with 0", s))
}

// ========================================
// Conversion helpers
// ========================================

// Text renders a driver value as a string. The second return is false for nil.
func Text(raw any) (string, bool) {
	switch t := raw.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}
