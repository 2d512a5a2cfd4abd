package service

import (
	"fmt"
	"unicode"

	"github.com/enroll-next/internal/config"
)

func validatePassword(policy config.PasswordPolicyConfig, password string) error {
	if policy.MinLength <= 0 &&
		!policy.RequireUpper &&
		!policy.RequireLower &&
		!policy.RequireNumber {
		return nil
	}

	if policy.MinLength > 0 {
		if len([]rune(password)) < policy.MinLength {
			return fmt.Errorf("%w: 长度不能少于 %d 位", ErrWeakPassword, policy.MinLength)
		}
	}

	var hasUpper, hasLower, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}

	if policy.RequireUpper && !hasUpper {
		return fmt.Errorf("%w: 必须包含大写字母", ErrWeakPassword)
	}
	if policy.RequireLower && !hasLower {
		return fmt.Errorf("%w: 必须包含小写字母", ErrWeakPassword)
	}
	if policy.RequireNumber && !hasNumber {
		return fmt.Errorf("%w: 必须包含数字", ErrWeakPassword)
	}

	return nil
}
