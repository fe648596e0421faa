package authcore

import (
	"context"
	"errors"

	"github.com/verisella/authcore/identity"
	"github.com/verisella/authcore/internal"
	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/internal/stores"
)

// ErrNoSender is returned when a verification code is requested but the
// engine was built without a code sender.
var ErrNoSender = errors.New("no code sender configured")

func verificationChallengeID(principalID string, ch VerificationChannel) string {
	return principalID + ":" + string(ch)
}

// SendVerification generates a one-time code and delivers it to the
// principal on the given channel. Requesting a new code replaces any
// pending one for the same channel.
func (e *Engine) SendVerification(ctx context.Context, principalID string, ch VerificationChannel) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.sender == nil {
		return ErrNoSender
	}
	p, err := e.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	var recipient string
	switch ch {
	case ChannelEmail:
		recipient = p.Email
	case ChannelSMS:
		recipient = p.Phone
	}
	if recipient == "" {
		return errors.New("principal has no address on the requested channel")
	}

	code, err := internal.NewOTP(e.config.Verification.CodeDigits)
	if err != nil {
		return err
	}
	hash := internal.HashToken(code)
	challenge := &stores.Challenge{PrincipalID: principalID, SecretHash: hash[:]}
	id := verificationChallengeID(principalID, ch)
	if err := e.challenges.Save(ctx, id, challenge, e.config.Verification.CodeTTL); err != nil {
		return err
	}
	if err := e.sender.SendCode(ctx, ch, recipient, code); err != nil {
		_ = e.challenges.Delete(ctx, id)
		return err
	}
	e.metricInc(internalmetrics.MetricVerificationSent)
	e.emitAudit(ctx, auditEventVerificationSent, principalID, "", true, nil, map[string]string{"channel": string(ch)})
	return nil
}

// ConfirmVerification checks the delivered code and marks the channel
// verified. Codes are single use and budgeted; mismatches, expiry, and
// exhausted attempts all surface as [ErrInvalidVerificationCode].
func (e *Engine) ConfirmVerification(ctx context.Context, principalID string, ch VerificationChannel, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	hash := internal.HashToken(code)
	id := verificationChallengeID(principalID, ch)
	_, err := e.challenges.Consume(ctx, id, hash[:], e.config.Verification.MaxAttempts)
	if err != nil {
		e.metricInc(internalmetrics.MetricVerificationFailure)
		e.emitAudit(ctx, auditEventVerified, principalID, "", false, err, map[string]string{"channel": string(ch)})
		switch {
		case errors.Is(err, stores.ErrChallengeNotFound),
			errors.Is(err, stores.ErrChallengeMismatch),
			errors.Is(err, stores.ErrChallengeAttempts):
			return ErrInvalidVerificationCode
		}
		return err
	}
	if err := e.principals.MarkVerified(ctx, principalID, ch); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	e.metricInc(internalmetrics.MetricVerificationSuccess)
	e.emitAudit(ctx, auditEventVerified, principalID, "", true, nil, map[string]string{"channel": string(ch)})
	return nil
}
