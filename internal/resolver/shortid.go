// Package resolver expands short entity id prefixes into full ids.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/easel/pkg/board"
)

// MinShortIDLength is the shortest prefix accepted.
const MinShortIDLength = 4

// ResolveEntityID finds the single entity whose id starts with shortID.
// A full id is returned as-is when present.
func ResolveEntityID(entities []*board.Entity, shortID string) (string, error) {
	shortID = strings.ToLower(shortID)
	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	var matches []string
	for _, e := range entities {
		if e.ID == shortID {
			return e.ID, nil
		}
		if strings.HasPrefix(e.ID, shortID) {
			matches = append(matches, e.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no entity matched the prefix.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no entities found matching '%s'", e.ShortID)
}

// AmbiguousError indicates several entities matched the prefix.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d entities", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists up to 10 candidates for the user.
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: ambiguous short ID '%s' matches %d entities:\n", err.ShortID, len(err.Matches))
	for _, id := range err.Matches[:min(10, len(err.Matches))] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}
	b.WriteString("\nUse a longer prefix to uniquely identify the entity.")
	return b.String()
}

// IsNotFoundError reports whether err is a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAmbiguousError reports whether err is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var amb *AmbiguousError
	return errors.As(err, &amb)
}
