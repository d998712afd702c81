package user

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/escola/core"
)

func TestNewUser_Validate(t *testing.T) {
	validate, translator := core.NewValidator()
	InitValidators(validate, translator)

	tests := []struct {
		name     string
		nu       NewUser
		wantTags []string
	}{
		{name: "valid", nu: NewUser{Email: " Eva@Escola.test ", Password: "Str0ng-Pass", Name: "Eva", Role: "ALUNO"}},
		{name: "missing fields", nu: NewUser{}, wantTags: []string{"required", "required", "required", "required"}},
		{name: "bad email and role", nu: NewUser{Email: "eva", Password: "Str0ng-Pass", Name: "Eva", Role: "diretor"}, wantTags: []string{"email", "app_role"}},
		{name: "short password", nu: NewUser{Email: "eva@escola.test", Password: "abc", Name: "Eva", Role: RoleAluno}, wantTags: []string{pwdPolicyTag}},
		{name: "numeric password", nu: NewUser{Email: "eva@escola.test", Password: "1234567890", Name: "Eva", Role: RoleAluno}, wantTags: []string{pwdPolicyTag}},
		{name: "password with space", nu: NewUser{Email: "eva@escola.test", Password: "pass word 1", Name: "Eva", Role: RoleAluno}, wantTags: []string{pwdPolicyTag}},
		{name: "password like email", nu: NewUser{Email: "evasantos@escola.test", Password: "evasantos1", Name: "Eva", Role: RoleAluno}, wantTags: []string{pwdAttrSimTag}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := tt.nu
			err := nu.Validate(validate)
			if len(tt.wantTags) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				if nu.Email != "eva@escola.test" || nu.Role != RoleAluno {
					t.Errorf("Validate() did not clean fields: %+v", nu)
				}
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("Validate() error = %v, want validator.ValidationErrors", err)
			}
			if len(verrs) != len(tt.wantTags) {
				t.Fatalf("Validate() got %d errors (%v), want %d", len(verrs), verrs, len(tt.wantTags))
			}
			for i, fe := range verrs {
				if fe.Tag() != tt.wantTags[i] {
					t.Errorf("error %d tag = %s, want %s", i, fe.Tag(), tt.wantTags[i])
				}
			}
		})
	}
}

func TestSignUp_PasswordConfirm(t *testing.T) {
	validate, translator := core.NewValidator()
	InitValidators(validate, translator)

	su := SignUp{Token: "tok", Name: "Fabio", Password: "Str0ng-Pass", PasswordConfirm: "Other-Pass1"}
	verrs, ok := su.Validate(validate).(validator.ValidationErrors)
	if !ok || len(verrs) != 1 || verrs[0].Tag() != "eqfield" {
		t.Errorf("Validate() = %v, want a single eqfield error", verrs)
	}
}
