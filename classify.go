package authsdk

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/MrEthical07/authsdk/credstore"
	"github.com/MrEthical07/authsdk/internal/otp"
	"github.com/MrEthical07/authsdk/internal/refresh"
	"github.com/MrEthical07/authsdk/internal/transport"
	"github.com/MrEthical07/authsdk/internal/validate"
)

// Kind is the closed failure taxonomy. Every error classifies to exactly one
// Kind, with [KindUnknown] as the explicit catch-all.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindValidationFailed
	KindRateLimited
	KindNetworkTimeout
	KindNetworkUnreachable
	KindStorageError
	KindOTPExpired
	KindOTPInvalid
	KindOTPAttemptsExceeded
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindValidationFailed:
		return "validation_failed"
	case KindRateLimited:
		return "rate_limited"
	case KindNetworkTimeout:
		return "network_timeout"
	case KindNetworkUnreachable:
		return "network_unreachable"
	case KindStorageError:
		return "storage_error"
	case KindOTPExpired:
		return "otp_expired"
	case KindOTPInvalid:
		return "otp_invalid"
	case KindOTPAttemptsExceeded:
		return "otp_attempts_exceeded"
	default:
		return "unknown"
	}
}

// Action is the recommended recovery for a classified failure.
type Action uint8

const (
	ActionSurface Action = iota
	ActionRetryOnce
	ActionBackoff
	ActionClearSession
)

func (a Action) String() string {
	switch a {
	case ActionRetryOnce:
		return "retry_once"
	case ActionBackoff:
		return "backoff_and_retry"
	case ActionClearSession:
		return "clear_session"
	default:
		return "surface"
	}
}

// Classification is the structured outcome of [Classify].
type Classification struct {
	Kind        Kind
	Recoverable bool
	Action      Action

	// Message is user-presentable. Raw transport errors never surface here.
	Message string
}

// Classify maps any failure to the closed taxonomy. The mapping is pure and
// deterministic: same error value, same classification.
//
// Inspection order: session-expiry sentinel (it may wrap a backend 401, and
// clear-session must win over retry-once), then HTTP status, then transport
// timeout/unreachable signals, then storage, OTP, and input sentinels.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: KindUnknown, Action: ActionSurface, Message: ""}
	}

	if errors.Is(err, refresh.ErrSessionExpired) || errors.Is(err, refresh.ErrNoRefreshToken) {
		return Classification{
			Kind:    KindUnauthorized,
			Action:  ActionClearSession,
			Message: "Your session has expired. Please log in again.",
		}
	}

	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return Classification{
				Kind:        KindUnauthorized,
				Recoverable: true,
				Action:      ActionRetryOnce,
				Message:     "Your session has expired. Please log in again.",
			}
		case http.StatusUnprocessableEntity:
			return Classification{
				Kind:    KindValidationFailed,
				Action:  ActionSurface,
				Message: validationMessage(apiErr),
			}
		case http.StatusTooManyRequests:
			return Classification{
				Kind:        KindRateLimited,
				Recoverable: true,
				Action:      ActionBackoff,
				Message:     "Too many requests. Please try again later.",
			}
		default:
			return Classification{
				Kind:    KindUnknown,
				Action:  ActionSurface,
				Message: "An unexpected error occurred.",
			}
		}
	}

	if isTimeout(err) {
		return Classification{
			Kind:    KindNetworkTimeout,
			Action:  ActionSurface,
			Message: "Request timeout. Please check your connection.",
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Classification{
			Kind:    KindNetworkUnreachable,
			Action:  ActionSurface,
			Message: "Network error. Please check your connection.",
		}
	}

	if errors.Is(err, credstore.ErrStorage) {
		return Classification{
			Kind:    KindStorageError,
			Action:  ActionSurface,
			Message: "Could not persist your session. It will last until this app closes.",
		}
	}

	switch {
	case errors.Is(err, otp.ErrExpired):
		return Classification{
			Kind:    KindOTPExpired,
			Action:  ActionSurface,
			Message: "The code has expired. Request a new one.",
		}
	case errors.Is(err, otp.ErrAttemptsExceeded):
		return Classification{
			Kind:    KindOTPAttemptsExceeded,
			Action:  ActionSurface,
			Message: "Too many incorrect codes. Request a new one.",
		}
	case errors.Is(err, otp.ErrInvalid):
		return Classification{
			Kind:    KindOTPInvalid,
			Action:  ActionSurface,
			Message: "The code is incorrect.",
		}
	case errors.Is(err, otp.ErrResendCooldown):
		return Classification{
			Kind:        KindRateLimited,
			Recoverable: true,
			Action:      ActionBackoff,
			Message:     "Please wait before requesting another code.",
		}
	case errors.Is(err, otp.ErrNotIssued), errors.Is(err, otp.ErrChallengeActive), errors.Is(err, otp.ErrAlreadyVerified):
		return Classification{
			Kind:    KindOTPInvalid,
			Action:  ActionSurface,
			Message: "No active verification code. Request a new one.",
		}
	}

	if errors.Is(err, validate.ErrInvalid) {
		return Classification{
			Kind:    KindValidationFailed,
			Action:  ActionSurface,
			Message: err.Error(),
		}
	}

	return Classification{
		Kind:    KindUnknown,
		Action:  ActionSurface,
		Message: "An unexpected error occurred.",
	}
}

func validationMessage(apiErr *transport.APIError) string {
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return "Validation failed."
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
