package user

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/escola/core"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdPolicyTag  = "pwdpolicy"
	pwdPolicyText = fmt.Sprintf("password must contain at least %d characters, no whitespace and cannot be entirely numeric", pwdMinLen)

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// InitValidators registers the user validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(pwdPolicyTag, passwordPolicyValidation)
	core.RegisterCustomTranslation(validate, translator, pwdPolicyTag, pwdPolicyText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, SignUp{})
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// passwordPolicyValidation applies the password policy:
// - minLen: 8
// - no whitespace
// - not all numeric
func passwordPolicyValidation(fl validator.FieldLevel) bool {
	pwd := fl.Field().String()
	if len([]rune(pwd)) < pwdMinLen {
		return false
	}
	var digitCount int
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			return false
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	return digitCount != len([]rune(pwd))
}

// userStructValidation rejects passwords too similar to the user's name or email.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		if tooSimilar(usr.Password, usr.Name, usr.Email) {
			sl.ReportError(usr.Password, "password", "Password", pwdAttrSimTag, "")
		}
	case SignUp:
		if tooSimilar(usr.Password, usr.Name) {
			sl.ReportError(usr.Password, "password", "Password", pwdAttrSimTag, "")
		}
	}
}

func tooSimilar(pwd string, attrs ...string) bool {
	if pwd == "" {
		return false
	}
	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		attr = strings.ToLower(attr)
		if i := strings.Index(attr, "@"); i > 0 {
			attr = attr[:i]
		}
		m := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(attr, ""))
		if m.QuickRatio() >= pwdMaxSim && m.Ratio() >= pwdMaxSim {
			return true
		}
	}
	return false
}
