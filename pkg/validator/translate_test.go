package validator_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/pkg/validator"
)

// catalog renders "{name}" placeholders from a fixed message table.
func catalog(messages map[string]string) func(string, map[string]any) string {
	return func(key string, values map[string]any) string {
		msg, ok := messages[key]
		if !ok {
			return key
		}
		pairs := make([]string, 0, len(values)*2)
		for k, v := range values {
			pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
		}
		return strings.NewReplacer(pairs...).Replace(msg)
	}
}

func TestValidationErrorsTranslate(t *testing.T) {
	t.Parallel()

	german := catalog(map[string]string{
		"validation.required": "{field} ist erforderlich",
	})

	t.Run("rule errors carry translation keys", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(
			validator.RequiredString("email", ""),
			validator.MinLenString("name", "ab", 3),
		)
		errs := validator.ExtractValidationErrors(err)
		require.Len(t, errs, 2)
		for _, e := range errs {
			require.NotEmpty(t, e.TranslationKey, e.Field)
		}

		errs.Translate(german)
		require.Equal(t, "email ist erforderlich", errs.Get("email")[0])
		require.Equal(t, errs.GetErrors("name")[0].TranslationKey, errs.Get("name")[0])
	})

	t.Run("entries without key and nil translator are untouched", func(t *testing.T) {
		t.Parallel()

		errs := validator.ValidationErrors{
			{Field: "name", Message: "original"},
			{Field: "email", Message: "is required", TranslationKey: "validation.required"},
		}
		errs.Translate(nil)
		require.Equal(t, "is required", errs[1].Message)

		errs.Translate(german)
		require.Equal(t, "original", errs[0].Message)
		require.Equal(t, "{field} ist erforderlich", errs[1].Message)
	})
}
