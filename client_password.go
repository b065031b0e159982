package authsdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authsdk/internal/validate"
)

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	Token       string `json:"token"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ForgotPassword asks the backend to mail a reset code to the address.
// The backend answers success even for unknown addresses, so a nil return
// does not confirm the account exists.
func (c *Client) ForgotPassword(ctx context.Context, email string) (err error) {
	if err = c.begin(); err != nil {
		return err
	}
	defer func() { c.finish(err) }()

	if err = validate.Email(email); err != nil {
		return err
	}
	err = c.gateway.DoOnce(ctx, http.MethodPost, "/auth/forgot-password", forgotPasswordRequest{Email: email}, nil)
	c.audit.Record(ctx, "forgot_password", email, err == nil, err)
	return err
}

// ResetPassword completes the forgot-password flow with the mailed code.
// It does not establish a session; the caller logs in afterwards.
func (c *Client) ResetPassword(ctx context.Context, email, otpCode, newPassword string) (err error) {
	if err = c.begin(); err != nil {
		return err
	}
	defer func() { c.finish(err) }()

	if err = validate.Email(email); err != nil {
		return err
	}
	if err = validate.OTPCode(otpCode); err != nil {
		return err
	}
	err = c.gateway.DoOnce(ctx, http.MethodPost, "/auth/reset-password", resetPasswordRequest{
		Email:       email,
		OTP:         otpCode,
		NewPassword: newPassword,
	}, nil)
	c.audit.Record(ctx, "reset_password", email, err == nil, err)
	return err
}

// ChangePassword rotates the password of the signed-in user. The current
// access token rides in the body as well as the bearer header because the
// backend revokes the presented token's siblings on success.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) (err error) {
	if err = c.begin(); err != nil {
		return err
	}
	defer func() { c.finish(err) }()

	if !c.State().IsAuthenticated {
		return ErrNotAuthenticated
	}
	if err = validate.PasswordChange(oldPassword, newPassword); err != nil {
		return err
	}

	pair, ok, lerr := c.store.Load(ctx)
	if lerr != nil || !ok {
		if lerr != nil {
			return fmt.Errorf("load credentials: %w", lerr)
		}
		return ErrNotAuthenticated
	}

	email := c.currentEmail()
	err = c.gateway.Do(ctx, http.MethodPost, "/auth/change-password", changePasswordRequest{
		Token:       pair.AccessToken,
		OldPassword: oldPassword,
		NewPassword: newPassword,
	}, nil)
	if err != nil {
		c.audit.Record(ctx, "change_password", email, false, err)
		return err
	}

	c.metrics.Inc(MetricPasswordChanged)
	c.audit.Record(ctx, "change_password", email, true, nil)
	return nil
}
