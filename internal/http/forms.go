package httpx

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type loginForm struct {
	Email    string `form:"email"    validate:"required,email,max=254"`
	Password string `form:"password" validate:"required,max=128"`
}

type signupForm struct {
	FullName string `form:"full_name" validate:"required,max=120"`
	Email    string `form:"email"     validate:"required,email,max=254"`
	Password string `form:"password"  validate:"required,min=8,max=128"`
	Role     string `form:"role"      validate:"required,oneof=admin trainer learner"`
}

// newFormValidator returns a validator that reports fields by their form name.
func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func readLoginForm(r *http.Request) loginForm {
	return loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
}

func readSignupForm(r *http.Request) signupForm {
	return signupForm{
		FullName: strings.TrimSpace(r.PostFormValue("full_name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Role:     strings.ToLower(strings.TrimSpace(r.PostFormValue("role"))),
	}
}

// fieldErrors validates form and returns a message per failing field, or nil.
func fieldErrors(v *validator.Validate, form any) map[string]string {
	err := v.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return label + " must be at least " + fe.Param() + " characters."
	case "max":
		return label + " cannot exceed " + fe.Param() + " characters."
	case "oneof":
		return "Choose one of: " + strings.ReplaceAll(fe.Param(), " ", ", ") + "."
	default:
		return label + " is invalid."
	}
}

var fieldLabels = map[string]string{
	"email":     "Email",
	"password":  "Password",
	"full_name": "Full name",
	"role":      "Role",
}
