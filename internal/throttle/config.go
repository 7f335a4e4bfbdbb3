package throttle

import (
	"fmt"
	"strings"
	"time"

	"LoginGuard/internal/domain"
)

const (
	DefaultMaxAttempts    = 5
	DefaultLockoutMinutes = 15
	DefaultLockoutMessage = "Too many failed login attempts. Please try again in %d minutes."
)

// Config holds the thresholds of the login attempt limiter. The JSON names match
// the option keys stored by the settings surface.
type Config struct {
	MaxAttempts    int    `json:"max_attempts"`
	LockoutMinutes int    `json:"lockout_duration"`
	LockoutMessage string `json:"lockout_message"`
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		LockoutMinutes: DefaultLockoutMinutes,
		LockoutMessage: DefaultLockoutMessage,
	}
}

// WithDefaults replaces every missing or invalid field with its default.
func (c Config) WithDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.LockoutMinutes < 1 {
		c.LockoutMinutes = DefaultLockoutMinutes
	}
	if !ValidMessageTemplate(c.LockoutMessage) {
		c.LockoutMessage = DefaultLockoutMessage
	}
	return c
}

// Validate is used on the write path; the read path uses WithDefaults instead.
func (c Config) Validate() error {
	fields := map[string]string{}
	if c.MaxAttempts < 1 {
		fields["max_attempts"] = "must be at least 1"
	}
	if c.LockoutMinutes < 1 {
		fields["lockout_duration"] = "must be at least 1"
	}
	if !ValidMessageTemplate(c.LockoutMessage) {
		fields["lockout_message"] = "must contain exactly one %d placeholder (flags and width such as %2d are allowed)"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

func (c Config) LockoutDuration() time.Duration {
	return time.Duration(c.LockoutMinutes) * time.Minute
}

// FormatMessage substitutes minutes into the lockout message template.
func (c Config) FormatMessage(minutes int) string {
	tmpl := c.LockoutMessage
	if !ValidMessageTemplate(tmpl) {
		tmpl = DefaultLockoutMessage
	}
	return fmt.Sprintf(tmpl, minutes)
}

// ValidMessageTemplate reports whether s has exactly one integer verb of the
// form %[flags][width][.precision]d and no other verbs apart from the %% escape.
func ValidMessageTemplate(s string) bool {
	verbs := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			continue
		}
		i++
		if i < len(s) && s[i] == '%' {
			continue
		}
		for i < len(s) && strings.IndexByte("-+ #0", s[i]) >= 0 {
			i++
		}
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i < len(s) && s[i] == '.' {
			i++
			for i < len(s) && s[i] >= '0' && s[i] <= '9' {
				i++
			}
		}
		if i >= len(s) || s[i] != 'd' {
			return false
		}
		verbs++
	}
	return verbs == 1
}
