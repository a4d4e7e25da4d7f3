// Package validator provides composable validation rules and a struct-tag
// driven validator.
//
// Rules are plain values built by constructors such as RequiredString or
// MinNum. Apply evaluates a set of rules and returns ValidationErrors when any
// of them fail:
//
//	err := validator.Apply(
//	    validator.RequiredString("email", form.Email),
//	    validator.MinLenString("password", form.Password, 8),
//	)
//	if ve := validator.ExtractValidationErrors(err); ve != nil {
//	    // render ve
//	}
//
// Struct fields can declare the same constraints with the validate tag, using
// ';' between rules and ':' between a rule and its argument:
//
//	type CreateUser struct {
//	    Name  string `json:"name"  validate:"required;min:3;max:64"`
//	    Email string `json:"email" validate:"required;email"`
//	    Age   int    `json:"age"   validate:"gte:18"`
//	    Role  string `json:"role"  validate:"oneof:admin|member"`
//	}
//
//	err := validator.Struct(&req)
//
// Supported tag rules: required, min, max, len, gt, gte, lt, lte, pattern,
// oneof, email, uuid. For strings min/max/len measure length in runes, for
// slices and maps they count items, and for numbers they bound the value.
//
// Every ValidationError carries a TranslationKey and TranslationValues so that
// messages can be localized with ValidationErrors.Translate.
package validator
