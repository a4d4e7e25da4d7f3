package validator

import (
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Rule pairs a check with the error reported when the check fails.
type Rule struct {
	Check func() bool
	Error ValidationError
}

// Numeric is the set of types accepted by the numeric rules.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// printer formats numbers in default messages (1000 -> "1,000").
var printer = message.NewPrinter(language.English)

// Apply evaluates rules in order and returns ValidationErrors for every failed rule.
// Returns nil when all rules pass.
func Apply(rules ...Rule) error {
	var errs ValidationErrors
	for _, r := range rules {
		if r.Check != nil && !r.Check() {
			errs = append(errs, r.Error)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func newRule(check func() bool, field, msg, key string, values map[string]any) Rule {
	if values == nil {
		values = make(map[string]any, 1)
	}
	values["field"] = field
	return Rule{
		Check: check,
		Error: ValidationError{
			Field:             field,
			Message:           msg,
			TranslationKey:    key,
			TranslationValues: values,
		},
	}
}

func RequiredString(field, v string) Rule {
	return newRule(func() bool { return strings.TrimSpace(v) != "" },
		field, "field is required", "validation.required", nil)
}

func RequiredSlice[T any](field string, v []T) Rule {
	return newRule(func() bool { return len(v) > 0 },
		field, "field is required", "validation.required", nil)
}

func RequiredMap[K comparable, V any](field string, v map[K]V) Rule {
	return newRule(func() bool { return len(v) > 0 },
		field, "field is required", "validation.required", nil)
}

func RequiredNum[T Numeric](field string, v T) Rule {
	return newRule(func() bool { return v != 0 },
		field, "field is required", "validation.required", nil)
}

func MinLenString(field, v string, n int) Rule {
	return newRule(func() bool { return utf8.RuneCountInString(v) >= n },
		field, printer.Sprintf("must be at least %d characters long", n),
		"validation.min_length", map[string]any{"min": n})
}

func MaxLenString(field, v string, n int) Rule {
	return newRule(func() bool { return utf8.RuneCountInString(v) <= n },
		field, printer.Sprintf("must not exceed %d characters", n),
		"validation.max_length", map[string]any{"max": n})
}

func LenString(field, v string, n int) Rule {
	return newRule(func() bool { return utf8.RuneCountInString(v) == n },
		field, printer.Sprintf("must be exactly %d characters long", n),
		"validation.exact_length", map[string]any{"length": n})
}

func MinLenSlice[T any](field string, v []T, n int) Rule {
	return newRule(func() bool { return len(v) >= n },
		field, printer.Sprintf("must contain at least %d items", n),
		"validation.min_items", map[string]any{"min": n})
}

func MaxLenSlice[T any](field string, v []T, n int) Rule {
	return newRule(func() bool { return len(v) <= n },
		field, printer.Sprintf("must not contain more than %d items", n),
		"validation.max_items", map[string]any{"max": n})
}

func LenSlice[T any](field string, v []T, n int) Rule {
	return newRule(func() bool { return len(v) == n },
		field, printer.Sprintf("must contain exactly %d items", n),
		"validation.exact_items", map[string]any{"count": n})
}

func MinNum[T Numeric](field string, v, n T) Rule {
	return newRule(func() bool { return v >= n },
		field, printer.Sprintf("must be at least %v", n),
		"validation.min", map[string]any{"min": n})
}

func MaxNum[T Numeric](field string, v, n T) Rule {
	return newRule(func() bool { return v <= n },
		field, printer.Sprintf("must not exceed %v", n),
		"validation.max", map[string]any{"max": n})
}

func GreaterThan[T Numeric](field string, v, n T) Rule {
	return newRule(func() bool { return v > n },
		field, printer.Sprintf("must be greater than %v", n),
		"validation.gt", map[string]any{"value": n})
}

func LessThan[T Numeric](field string, v, n T) Rule {
	return newRule(func() bool { return v < n },
		field, printer.Sprintf("must be less than %v", n),
		"validation.lt", map[string]any{"value": n})
}

// MatchString checks v against re. Empty values pass; combine with RequiredString.
func MatchString(field, v string, re *regexp.Regexp) Rule {
	return newRule(func() bool { return v == "" || re.MatchString(v) },
		field, "has an invalid format",
		"validation.pattern", map[string]any{"pattern": re.String()})
}

// OneOf checks that v is one of the allowed values. Empty values pass.
func OneOf(field, v string, allowed ...string) Rule {
	return newRule(func() bool { return v == "" || slices.Contains(allowed, v) },
		field, "must be one of: "+strings.Join(allowed, ", "),
		"validation.one_of", map[string]any{"values": allowed})
}

// Email checks that v is a bare email address. Empty values pass.
func Email(field, v string) Rule {
	return newRule(func() bool {
		if v == "" {
			return true
		}
		addr, err := mail.ParseAddress(v)
		return err == nil && addr.Address == v
	}, field, "must be a valid email address", "validation.email", nil)
}

// UUID checks that v is a canonical UUID string. Empty values pass.
func UUID(field, v string) Rule {
	return newRule(func() bool {
		if v == "" {
			return true
		}
		_, err := uuid.Parse(v)
		return err == nil && len(v) == 36
	}, field, "must be a valid UUID", "validation.uuid", nil)
}
