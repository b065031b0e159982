package authsdk

import (
	"errors"

	"github.com/MrEthical07/authsdk/internal/otp"
	"github.com/MrEthical07/authsdk/internal/refresh"
	"github.com/MrEthical07/authsdk/internal/validate"
)

var (
	// ErrNotAuthenticated is returned by operations that require a live session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrInvalidInput marks locally rejected request input.
	ErrInvalidInput = validate.ErrInvalid

	// ErrSessionExpired wraps a rejected credential refresh. The local session
	// is already torn down when a caller observes it.
	ErrSessionExpired = refresh.ErrSessionExpired
	// ErrNoRefreshToken means a refresh was requested with nothing to renew.
	ErrNoRefreshToken = refresh.ErrNoRefreshToken

	// ErrOTPNotIssued is returned when verify/resend runs without a challenge.
	ErrOTPNotIssued = otp.ErrNotIssued
	// ErrOTPChallengeActive rejects issuing over a live challenge.
	ErrOTPChallengeActive = otp.ErrChallengeActive
	// ErrOTPInvalid means the backend rejected the submitted code.
	ErrOTPInvalid = otp.ErrInvalid
	// ErrOTPExpired means the challenge's validity window has passed.
	ErrOTPExpired = otp.ErrExpired
	// ErrOTPAttemptsExceeded means the challenge is exhausted.
	ErrOTPAttemptsExceeded = otp.ErrAttemptsExceeded
	// ErrOTPResendCooldown rejects a resend inside the cooldown window.
	ErrOTPResendCooldown = otp.ErrResendCooldown
)
