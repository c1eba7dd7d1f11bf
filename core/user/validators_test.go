package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

func newTestValidator(t *testing.T) *validator.Validate {
	t.Helper()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	RegisterValidators(validate, translator)
	return validate
}

func TestPasswordPolicy(t *testing.T) {
	validate := newTestValidator(t)

	tests := []struct {
		name    string
		nu      NewUser
		wantTag string
	}{
		{name: "min length", nu: NewUser{Email: "t@test.cd", Password: "lol"}, wantTag: pwdMinLenTag},
		{name: "no whitespace", nu: NewUser{Email: "t@test.cd", Password: "l o loll"}, wantTag: pwdNoSpaceTag},
		{name: "not all numeric", nu: NewUser{Email: "t@test.cd", Password: "12345678"}, wantTag: pwdNotAllNumTag},
		{name: "similar to email", nu: NewUser{Email: "t0mmy@test.cd", Password: "t0mmy@test.cd"}, wantTag: pwdAttrSimTag},
		{name: "similar to name", nu: NewUser{Name: "Serendipity", Email: "t@test.cd", Password: "serendipity"}, wantTag: pwdAttrSimTag},
		{name: "valid", nu: NewUser{Email: "t@test.cd", Password: "s3cretW0rd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.nu)
			if tt.wantTag == "" {
				if err != nil {
					t.Errorf("Struct() error = %v", err)
				}
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("Struct() error = %v, want ValidationErrors", err)
			}
			var found bool
			for _, vErr := range vErrs {
				if vErr.Tag() == tt.wantTag {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Struct() errors = %v, want tag %q", vErrs, tt.wantTag)
			}
		})
	}
}

func TestMakeResetToken(t *testing.T) {
	t1, err := MakeResetToken()
	if err != nil {
		t.Fatalf("MakeResetToken(): %v", err)
	}
	t2, err := MakeResetToken()
	if err != nil {
		t.Fatalf("MakeResetToken(): %v", err)
	}
	if len(t1) != 64 {
		t.Errorf("MakeResetToken() len = %d, want 64 hex chars", len(t1))
	}
	if t1 == t2 {
		t.Error("MakeResetToken() returned the same token twice")
	}
}
