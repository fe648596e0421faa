package policy

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidDocument is returned when a loaded or merged policy document
// fails schema validation.
var ErrInvalidDocument = errors.New("invalid policy document")

// AuthPolicy holds the verification and account-lifecycle gates enforced
// around provider calls.
type AuthPolicy struct {
	EmailVerificationRequired bool `json:"emailVerificationRequired"`
	SMSVerificationRequired   bool `json:"smsVerificationRequired"`
	LoginAfterRegistration    bool `json:"loginAfterRegistration"`
	PasswordReset             bool `json:"passwordReset"`
	PasswordChange            bool `json:"passwordChange"`
	AccountDeletion           bool `json:"accountDeletion"`
}

// PasswordPolicy holds the composition rules applied to new passwords.
type PasswordPolicy struct {
	MinLength          int  `json:"minLength"`
	RequireUppercase   bool `json:"requireUppercase"`
	RequireLowercase   bool `json:"requireLowercase"`
	RequireNumber      bool `json:"requireNumber"`
	RequireSpecialChar bool `json:"requireSpecialChar"`
	MaxAttempts        int  `json:"maxAttempts"`
}

// SessionSettings holds token lifetimes and rotation behavior.
type SessionSettings struct {
	AccessTokenTTL   time.Duration `json:"accessTokenTTL"`
	RefreshTokenTTL  time.Duration `json:"refreshTokenTTL"`
	TokenRotation    bool          `json:"tokenRotation"`
	MultipleSessions bool          `json:"multipleSessions"`
}

// MFASettings holds the multi-factor requirement and the methods a
// principal may enroll.
type MFASettings struct {
	Required       bool     `json:"required"`
	AllowedMethods []string `json:"allowedMethods"`
}

// RateRule is one named fixed-window budget from the rateLimiting table.
type RateRule struct {
	Requests int           `json:"requests"`
	Interval time.Duration `json:"interval"`
}

// AdminFeature toggles the administrative identity plane.
type AdminFeature struct {
	Enabled             bool     `json:"enabled"`
	CreateInitialAPIKey bool     `json:"createInitialApiKey"`
	InitialAPIKeyScopes []string `json:"initialApiKeyScopes"`
}

// Document is the single versioned security-policy object governing
// provider enablement, password rules, session lifetimes, MFA, rate
// limits, and the admin feature. Exactly one authoritative row exists;
// Version increases monotonically on every persisted update.
type Document struct {
	EnabledProviders []string            `json:"enabledProviders"`
	AuthPolicy       AuthPolicy          `json:"authPolicy"`
	PasswordPolicy   PasswordPolicy      `json:"passwordPolicy"`
	SessionSettings  SessionSettings     `json:"sessionSettings"`
	MFASettings      MFASettings         `json:"mfaSettings"`
	RateLimiting     map[string]RateRule `json:"rateLimiting"`
	AdminFeature     AdminFeature        `json:"adminFeature"`

	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProviderEnabled reports whether the named provider appears in
// EnabledProviders.
func (d *Document) ProviderEnabled(name string) bool {
	if d == nil {
		return false
	}
	return slices.Contains(d.EnabledProviders, name)
}

// Rate returns the named rate rule. ok is false when the table has no
// entry for the rule, in which case the operation is unthrottled.
func (d *Document) Rate(rule string) (RateRule, bool) {
	if d == nil || d.RateLimiting == nil {
		return RateRule{}, false
	}
	r, ok := d.RateLimiting[rule]
	return r, ok
}

// Validate checks the document against the policy schema. Documents that
// fail validation are never served or persisted.
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	for _, p := range d.EnabledProviders {
		if p == "" {
			return fmt.Errorf("%w: empty provider name", ErrInvalidDocument)
		}
	}
	if d.PasswordPolicy.MinLength < 1 {
		return fmt.Errorf("%w: passwordPolicy.minLength must be >= 1", ErrInvalidDocument)
	}
	if d.PasswordPolicy.MaxAttempts < 0 {
		return fmt.Errorf("%w: passwordPolicy.maxAttempts must be >= 0", ErrInvalidDocument)
	}
	if d.SessionSettings.AccessTokenTTL <= 0 {
		return fmt.Errorf("%w: sessionSettings.accessTokenTTL must be positive", ErrInvalidDocument)
	}
	if d.SessionSettings.RefreshTokenTTL < d.SessionSettings.AccessTokenTTL {
		return fmt.Errorf("%w: sessionSettings.refreshTokenTTL must not be shorter than accessTokenTTL", ErrInvalidDocument)
	}
	for _, m := range d.MFASettings.AllowedMethods {
		if m != "totp" && m != "recovery" {
			return fmt.Errorf("%w: unsupported mfa method %q", ErrInvalidDocument, m)
		}
	}
	for name, rule := range d.RateLimiting {
		if name == "" {
			return fmt.Errorf("%w: empty rate rule name", ErrInvalidDocument)
		}
		if rule.Requests < 1 || rule.Interval <= 0 {
			return fmt.Errorf("%w: rate rule %q must have positive requests and interval", ErrInvalidDocument, name)
		}
	}
	if d.AdminFeature.CreateInitialAPIKey && len(d.AdminFeature.InitialAPIKeyScopes) == 0 {
		return fmt.Errorf("%w: adminFeature.initialApiKeyScopes required when createInitialApiKey is set", ErrInvalidDocument)
	}
	return nil
}

// Clone returns a deep copy. Cached documents are cloned before being
// handed to callers so readers can never mutate the shared copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.EnabledProviders = slices.Clone(d.EnabledProviders)
	out.MFASettings.AllowedMethods = slices.Clone(d.MFASettings.AllowedMethods)
	out.AdminFeature.InitialAPIKeyScopes = slices.Clone(d.AdminFeature.InitialAPIKeyScopes)
	if d.RateLimiting != nil {
		out.RateLimiting = make(map[string]RateRule, len(d.RateLimiting))
		for k, v := range d.RateLimiting {
			out.RateLimiting[k] = v
		}
	}
	return &out
}

// Patch is a partial document. Nil sections are left untouched by
// [Store.Update]; non-nil sections replace the current section wholesale.
type Patch struct {
	EnabledProviders *[]string            `json:"enabledProviders,omitempty"`
	AuthPolicy       *AuthPolicy          `json:"authPolicy,omitempty"`
	PasswordPolicy   *PasswordPolicy      `json:"passwordPolicy,omitempty"`
	SessionSettings  *SessionSettings     `json:"sessionSettings,omitempty"`
	MFASettings      *MFASettings         `json:"mfaSettings,omitempty"`
	RateLimiting     *map[string]RateRule `json:"rateLimiting,omitempty"`
	AdminFeature     *AdminFeature        `json:"adminFeature,omitempty"`
}

func (p Patch) apply(d *Document) {
	if p.EnabledProviders != nil {
		d.EnabledProviders = slices.Clone(*p.EnabledProviders)
	}
	if p.AuthPolicy != nil {
		d.AuthPolicy = *p.AuthPolicy
	}
	if p.PasswordPolicy != nil {
		d.PasswordPolicy = *p.PasswordPolicy
	}
	if p.SessionSettings != nil {
		d.SessionSettings = *p.SessionSettings
	}
	if p.MFASettings != nil {
		d.MFASettings = *p.MFASettings
		d.MFASettings.AllowedMethods = slices.Clone(p.MFASettings.AllowedMethods)
	}
	if p.RateLimiting != nil {
		d.RateLimiting = make(map[string]RateRule, len(*p.RateLimiting))
		for k, v := range *p.RateLimiting {
			d.RateLimiting[k] = v
		}
	}
	if p.AdminFeature != nil {
		d.AdminFeature = *p.AdminFeature
		d.AdminFeature.InitialAPIKeyScopes = slices.Clone(p.AdminFeature.InitialAPIKeyScopes)
	}
}

// Default returns the document used when the backend holds no row yet.
func Default() *Document {
	return &Document{
		EnabledProviders: []string{"local"},
		AuthPolicy: AuthPolicy{
			LoginAfterRegistration: true,
			PasswordReset:          true,
			PasswordChange:         true,
		},
		PasswordPolicy: PasswordPolicy{
			MinLength:     8,
			RequireNumber: true,
			MaxAttempts:   5,
		},
		SessionSettings: SessionSettings{
			AccessTokenTTL:   15 * time.Minute,
			RefreshTokenTTL:  7 * 24 * time.Hour,
			TokenRotation:    true,
			MultipleSessions: true,
		},
		MFASettings: MFASettings{
			AllowedMethods: []string{"totp", "recovery"},
		},
		RateLimiting: map[string]RateRule{
			"login":    {Requests: 10, Interval: time.Minute},
			"register": {Requests: 5, Interval: time.Minute},
		},
		Version:   1,
		UpdatedAt: time.Now(),
	}
}
