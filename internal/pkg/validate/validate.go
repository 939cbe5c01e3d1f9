package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// e164Pattern is '+' then 1 to 14 digits, the first of which (country code) is non-zero.
var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{0,13}$`)

// v is the package-level singleton validator. Custom rules are registered in
// init() before the first call to Struct.
var v = validator.New()

func init() {
	if err := v.RegisterValidation("e164phone", func(fl validator.FieldLevel) bool {
		return e164Pattern.MatchString(fl.Field().String())
	}); err != nil {
		panic("register e164phone: " + err.Error())
	}
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		return describe(err)
	}
	return nil
}

// Phone reports whether phone is a well-formed E.164 number.
func Phone(phone string) bool {
	return v.Var(phone, "required,e164phone") == nil
}

func describe(err error) error {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var msgs []string
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
