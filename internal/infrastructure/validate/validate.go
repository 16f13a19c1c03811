// package validate
package validate

import (
	"fmt"
	"strings"
)

// Validator is a function that validates a string and returns an error if invalid
type Validator func(value string) error

// Field creates a labeled validator with a custom name for better error messages
func Field(name string, validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				if !strings.Contains(err.Error(), name) {
					return fmt.Errorf("%s: %w", name, err)
				}
				return err
			}
		}
		return nil
	}
}

// Compose chains multiple validators, first error wins
func Compose(validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				return err
			}
		}
		return nil
	}
}

// Required ensures the field is not empty
func Required() Validator {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("this field is required")
		}
		return nil
	}
}

// MinLength checks minimum length
func MinLength(min int) Validator {
	return func(v string) error {
		if len(v) < min {
			return fmt.Errorf("must be at least %d characters", min)
		}
		return nil
	}
}

// MaxLength checks maximum length
func MaxLength(max int) Validator {
	return func(v string) error {
		if len(v) > max {
			return fmt.Errorf("must be no more than %d characters", max)
		}
		return nil
	}
}

// OneOf checks if value is in allowed list
func OneOf(allowed ...string) Validator {
	set := make(map[string]bool)
	for _, a := range allowed {
		set[a] = true
	}
	return func(v string) error {
		if !set[v] {
			return fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}

// NoSpaces disallows spaces
func NoSpaces() Validator {
	return func(v string) error {
		if strings.ContainsAny(v, " \t") {
			return fmt.Errorf("must not contain spaces")
		}
		return nil
	}
}

// TopicFilter validates an MQTT topic filter: non-empty, no NUL, '#' only as
// the final level, '+' only as a whole level.
func TopicFilter() Validator {
	return func(v string) error {
		if v == "" {
			return fmt.Errorf("topic filter must not be empty")
		}
		if strings.ContainsRune(v, 0) {
			return fmt.Errorf("topic filter must not contain NUL")
		}
		levels := strings.Split(v, "/")
		for i, level := range levels {
			if strings.Contains(level, "#") {
				if level != "#" || i != len(levels)-1 {
					return fmt.Errorf("'#' is only valid alone in the final topic level")
				}
			}
			if strings.Contains(level, "+") && level != "+" {
				return fmt.Errorf("'+' is only valid as a whole topic level")
			}
		}
		return nil
	}
}
