package auth

import (
	"errors"
	"fmt"
)

const (
	ScopeActivitiesRead  = "activities:read"
	ScopeActivitiesWrite = "activities:write"
)

// DefaultScopes are granted to tokens minted for end users.
var DefaultScopes = []string{ScopeActivitiesRead, ScopeActivitiesWrite}

// ReadScopes allow listing activities. Holding write access implies read.
var ReadScopes = []string{ScopeActivitiesRead, ScopeActivitiesWrite}

// ValidateScopes rejects an empty scope list or any scope the API does not check.
func ValidateScopes(scopes []string) error {
	if len(scopes) == 0 {
		return errors.New("at least one scope is required")
	}
	for _, s := range scopes {
		switch s {
		case ScopeActivitiesRead, ScopeActivitiesWrite:
		default:
			return fmt.Errorf("unknown scope %q", s)
		}
	}
	return nil
}
