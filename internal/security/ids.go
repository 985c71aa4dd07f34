package security

import (
	"crypto/rand"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// featureIDPattern matches the Feature.id shape required by the data model:
// 1 to 64 characters of letters, digits, underscore, or hyphen.
var featureIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// sessionNamePattern matches terminal-multiplexer session names: the same
// character class and length bound as a Feature id, since session names are
// themselves derived from a Feature id plus a random suffix.
var sessionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateFeatureID rejects anything that is not ^[a-zA-Z0-9_-]{1,64}$.
func ValidateFeatureID(s string) error {
	if !featureIDPattern.MatchString(s) {
		return fmt.Errorf("invalid feature id %q: must match %s", s, featureIDPattern.String())
	}
	return nil
}

// ValidateSessionName rejects anything that is not
// ^[a-zA-Z0-9_-]{1,64}$.
func ValidateSessionName(s string) error {
	if !sessionNamePattern.MatchString(s) {
		return fmt.Errorf("invalid session name %q: must match %s", s, sessionNamePattern.String())
	}
	return nil
}

const sessionNamePrefix = "cc-worker-"

// NewWorkerSessionName generates "cc-worker-<featureID>-<token>" where token
// is an 8-12 character alphanumeric suffix drawn from an OS CSPRNG. featureID
// must already be validated by the caller. exists reports whether a
// candidate session name is already taken; NewWorkerSessionName retries on
// collision up to 8 times before giving up, matching the spawn contract's
// "collision-retry if already present in the registry" requirement.
func NewWorkerSessionName(featureID string, exists func(string) bool) (string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		token, err := randomAlnumToken()
		if err != nil {
			return "", err
		}
		candidate := sessionNamePrefix + featureID + "-" + token
		if len(candidate) > 64 {
			// Extremely long feature IDs could overflow the 64-char session
			// name bound; truncate the feature portion defensively while
			// keeping the token (and therefore uniqueness) intact.
			overflow := len(candidate) - 64
			trimmedFeature := featureID
			if overflow < len(trimmedFeature) {
				trimmedFeature = trimmedFeature[:len(trimmedFeature)-overflow]
			}
			candidate = sessionNamePrefix + trimmedFeature + "-" + token
		}
		if exists == nil || !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique worker session name for feature %q after 8 attempts", featureID)
}

// randomAlnumToken returns an 8-12 character lowercase alphanumeric token
// derived from a UUIDv4 (itself backed by crypto/rand), picking a
// CSPRNG-determined length within range rather than a fixed one so session
// names are not trivially fingerprinted by length alone.
func randomAlnumToken() (string, error) {
	lengthByte := make([]byte, 1)
	if _, err := rand.Read(lengthByte); err != nil {
		return "", fmt.Errorf("read random token length: %w", err)
	}
	length := 8 + int(lengthByte[0]%5) // 8..12 inclusive

	raw := uuid.New().String()
	alnum := make([]byte, 0, len(raw))
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			alnum = append(alnum, byte(r))
		}
	}
	for len(alnum) < length {
		extra := uuid.New().String()
		for _, r := range extra {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				alnum = append(alnum, byte(r))
			}
		}
	}
	return string(alnum[:length]), nil
}

// NewTraceID returns a fresh UUID used only to correlate a single boundary
// operation's error details across log lines; it carries no security
// properties of its own.
func NewTraceID() string {
	return uuid.New().String()
}
