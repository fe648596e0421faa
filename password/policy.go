package password

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/verisella/authcore/policy"
)

// ErrPolicy is returned by [Validate] when a password violates the active
// password policy. The wrapped message names the first failed rule only;
// no part of the password is ever included.
var ErrPolicy = errors.New("password policy violation")

// Validate checks a candidate password against the policy document's
// composition rules.
func Validate(pw string, p policy.PasswordPolicy) error {
	if len(pw) < p.MinLength {
		return fmt.Errorf("%w: minimum length %d", ErrPolicy, p.MinLength)
	}

	var upper, lower, number, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsNumber(r):
			number = true
		default:
			special = true
		}
	}

	if p.RequireUppercase && !upper {
		return fmt.Errorf("%w: uppercase character required", ErrPolicy)
	}
	if p.RequireLowercase && !lower {
		return fmt.Errorf("%w: lowercase character required", ErrPolicy)
	}
	if p.RequireNumber && !number {
		return fmt.Errorf("%w: number required", ErrPolicy)
	}
	if p.RequireSpecialChar && !special {
		return fmt.Errorf("%w: special character required", ErrPolicy)
	}
	return nil
}
