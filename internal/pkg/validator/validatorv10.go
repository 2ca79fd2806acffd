package validator

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var ErrTranslatorNotFound = errors.New("translator not found")

// rule is a custom validation tag with its English message.
type rule struct {
	tag     string
	message string
	check   validator.Func
}

var confirmationCodeRe = regexp.MustCompile(`^[[:graph:]]{1,128}$`)

var rules = []rule{
	{
		tag:     "confirmation_code",
		message: "{0} must be 1-128 printable characters without spaces",
		check: func(fl validator.FieldLevel) bool {
			s, ok := fl.Field().Interface().(string)
			return ok && confirmationCodeRe.MatchString(s)
		},
	},
}

// V10ValidationError maps a field's json name (or Go name when untagged) to
// its translated message.
type V10ValidationError map[string]string

func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}
	b, _ := json.Marshal(map[string]string(vs))
	return string(b)
}

func (vs V10ValidationError) Values() map[string]string { return vs }

// V10Validator implements Validator on go-playground/validator with English messages.
type V10Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewV10Validator() (*V10Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)

	locale := en.New()
	trans, ok := ut.New(locale, locale).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}
	for _, r := range rules {
		if err := r.register(v, trans); err != nil {
			return nil, err
		}
	}

	return &V10Validator{validate: v, trans: trans}, nil
}

func (r rule) register(v *validator.Validate, trans ut.Translator) error {
	if err := v.RegisterValidation(r.tag, r.check); err != nil {
		return err
	}
	return v.RegisterTranslation(r.tag, trans,
		func(t ut.Translator) error { return t.Add(r.tag, r.message, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(fe.Tag(), fe.Field())
			return msg
		},
	)
}

// Validate returns V10ValidationError when data breaks its validate tags.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return err
	}

	out := make(V10ValidationError, len(fes))
	for _, fe := range fes {
		out[fe.Field()] = fe.Translate(v.trans)
	}
	return out
}

func fieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
