// Package validate checks user input before it reaches the backend, so
// obviously malformed requests fail locally with a friendly message.
package validate

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks any locally-rejected input.
var ErrInvalid = errors.New("invalid input")

var validate = validator.New()

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=128"`
}

type otpCode struct {
	Code string `validate:"required,len=6,numeric"`
}

type passwordChange struct {
	OldPassword string `validate:"required"`
	NewPassword string `validate:"required,min=8,max=128,nefield=OldPassword"`
}

// Credentials checks a login email/password pair.
func Credentials(email, password string) error {
	return check(credentials{Email: email, Password: password})
}

// Email checks a bare address, as used by OTP issue and password reset.
func Email(address string) error {
	return check(struct {
		Email string `validate:"required,email"`
	}{Email: address})
}

// OTPCode checks a one-time code before it is sent for verification.
func OTPCode(code string) error {
	return check(otpCode{Code: code})
}

// PasswordChange checks an old/new password pair.
func PasswordChange(oldPassword, newPassword string) error {
	return check(passwordChange{OldPassword: oldPassword, NewPassword: newPassword})
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return fmt.Errorf("%w: %s %s", ErrInvalid, fieldName(ve[0]), fieldMessage(ve[0]))
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "OldPassword":
		return "current password"
	case "NewPassword":
		return "new password"
	case "Code":
		return "code"
	default:
		return lowerFirst(fe.Field())
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "nefield":
		return "must differ from the current password"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
