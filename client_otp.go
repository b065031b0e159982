package authsdk

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/authsdk/internal/otp"
	"github.com/MrEthical07/authsdk/internal/transport"
	"github.com/MrEthical07/authsdk/internal/validate"
)

type otpRequest struct {
	Email string `json:"email"`
}

type otpVerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// SendLoginOTP issues a login challenge: the backend mails a one-time code
// to the address. A live unexpired challenge must be resent or abandoned
// before a new one can be issued.
func (c *Client) SendLoginOTP(ctx context.Context, email string) (err error) {
	if err = c.begin(); err != nil {
		return err
	}
	defer func() { c.finish(err) }()

	if err = validate.Email(email); err != nil {
		return err
	}
	if err = c.otp.Issue(ctx, email, c.requestOTP); err != nil {
		c.audit.Record(ctx, "otp_send", email, false, err)
		return err
	}

	c.metrics.Inc(MetricOTPSent)
	c.audit.Record(ctx, "otp_send", email, true, nil)
	return nil
}

// ResendLoginOTP reissues the current challenge outside the cooldown window,
// resetting the attempt budget.
func (c *Client) ResendLoginOTP(ctx context.Context) (err error) {
	if err = c.begin(); err != nil {
		return err
	}
	defer func() { c.finish(err) }()

	email := c.otp.Identity()
	if err = c.otp.Resend(ctx, c.requestOTP); err != nil {
		c.audit.Record(ctx, "otp_resend", email, false, err)
		return err
	}

	c.metrics.Inc(MetricOTPResent)
	c.audit.Record(ctx, "otp_resend", email, true, nil)
	return nil
}

// VerifyLoginOTP submits a code for the active challenge. The backend's
// verdict is ground truth; the local expiry and attempt bookkeeping only
// short-circuit calls that cannot succeed. On success a session is
// established exactly as with password login.
func (c *Client) VerifyLoginOTP(ctx context.Context, code string) (user *User, err error) {
	if err = c.begin(); err != nil {
		return nil, err
	}
	defer func() { c.finish(err) }()

	if err = validate.OTPCode(code); err != nil {
		return nil, err
	}

	var payload sessionPayload
	email := c.otp.Identity()
	err = c.otp.Verify(ctx, code, func(ctx context.Context, identity, code string) (bool, error) {
		verr := c.gateway.DoOnce(ctx, http.MethodPost, "/auth/login/verify-otp", otpVerifyRequest{Email: identity, OTP: code}, &payload)
		if verr != nil {
			var apiErr *transport.APIError
			if errors.As(verr, &apiErr) && otpRejectionStatus(apiErr.Status) {
				return false, nil
			}
			return false, verr
		}
		return true, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrInvalid):
			c.metrics.Inc(MetricOTPInvalid)
		case errors.Is(err, otp.ErrExpired):
			c.metrics.Inc(MetricOTPExpired)
		case errors.Is(err, otp.ErrAttemptsExceeded):
			c.metrics.Inc(MetricOTPAttemptsExceeded)
		}
		c.audit.Record(ctx, "otp_verify", email, false, err)
		return nil, err
	}

	if err = c.establishSession(ctx, payload.TokenData, payload.User); err != nil {
		c.audit.Record(ctx, "otp_verify", email, false, err)
		return nil, err
	}

	c.metrics.Inc(MetricOTPVerified)
	c.metrics.Inc(MetricLoginSuccess)
	c.audit.Record(ctx, "otp_verify", email, true, nil)
	c.bus.publish(EventLogin, email, "otp")
	return payload.User, nil
}

// OTPRemainingAttempts reports the attempt budget left on the active challenge.
func (c *Client) OTPRemainingAttempts() int {
	return c.otp.RemainingAttempts()
}

// OTPCanResend reports whether the resend cooldown has elapsed.
func (c *Client) OTPCanResend() bool {
	return c.otp.CanResend()
}

func (c *Client) requestOTP(ctx context.Context, identity string) error {
	return c.gateway.DoOnce(ctx, http.MethodPost, "/auth/login/request-otp", otpRequest{Email: identity}, nil)
}

// otpRejectionStatus distinguishes "the backend examined and rejected this
// code" from infrastructure failure. Rejection consumes an attempt.
func otpRejectionStatus(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}
