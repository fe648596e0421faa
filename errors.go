package authcore

import (
	"errors"

	"github.com/verisella/authcore/admin"
	"github.com/verisella/authcore/identity"
)

var (
	// ErrProviderNotEnabled is returned when the named provider is not in
	// the policy document's enabled list.
	ErrProviderNotEnabled = errors.New("provider not enabled")
	// ErrInvalidProvider is returned when no provider with the given name
	// is registered.
	ErrInvalidProvider = errors.New("invalid provider")
	// ErrProviderDoesNotSupportRegistration is returned when register is
	// called on a provider that only authenticates.
	ErrProviderDoesNotSupportRegistration = errors.New("provider does not support registration")
	// ErrInvalidCredentials is the single failure for unknown identifiers
	// and wrong secrets alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned for operations on a principal id that
	// does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateIdentifier is returned when registration collides with
	// an existing identifier.
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	// ErrRateLimitExceeded is returned when a policy rate rule's budget
	// for the current window is spent.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrMFARequired is returned by login when the principal has MFA
	// enabled and no code was presented.
	ErrMFARequired = errors.New("mfa required")
	// ErrInvalidMFACode is returned for codes that match neither the live
	// authenticator nor a recovery code.
	ErrInvalidMFACode = errors.New("invalid mfa code")
	// ErrMFAAlreadyEnabled is returned when enrollment starts on a
	// principal that already has MFA.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrMFANotEnabled is returned when verify or disable runs against a
	// principal without MFA.
	ErrMFANotEnabled = errors.New("mfa not enabled")
	// ErrInvalidConfig is returned for malformed engine configuration or
	// policy documents.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidOrExpiredSession is returned for access tokens that are
	// unknown, revoked, or expired.
	ErrInvalidOrExpiredSession = errors.New("invalid or expired session")
	// ErrInvalidRefreshToken is returned for refresh tokens that are
	// unknown or already consumed.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidVerificationCode is returned when a verification code
	// does not match or has expired.
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	// ErrPasswordPolicy is returned when a new password fails the policy
	// document's composition rules.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordChangeDisabled is returned when the policy has password
	// change switched off.
	ErrPasswordChangeDisabled = errors.New("password change disabled")
	// ErrPasswordReuse is returned when the new password equals the old.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrEngineNotReady is returned from methods on a nil engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Admin plane errors, shared with the admin package so errors.Is works
// across both surfaces.
var (
	ErrAdminFeatureDisabled = admin.ErrFeatureDisabled
	ErrInitialAdminRequired = admin.ErrInitialAdminRequired
	ErrAdminNotFound        = admin.ErrNotFound
)

// AdminUnauthorizedError names a denied admin action.
type AdminUnauthorizedError = admin.UnauthorizedError

// VerificationRequiredError is returned by login and register when the
// policy requires a verification the principal has not completed. It
// names the channel the caller must verify through.
type VerificationRequiredError struct {
	Channel identity.VerificationChannel
}

func (e *VerificationRequiredError) Error() string {
	return "verification required: " + string(e.Channel)
}
