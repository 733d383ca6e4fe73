package username

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	MaxLength          = 30
	BaseLength         = 25
	DefaultMaxAttempts = 10
	fallbackBase       = "user"
	suffixDigits       = 4
	// a dot this close to the cut point is preferred as the boundary
	boundaryWindow = 10
)

var (
	ErrExhausted = errors.New("unable to generate a unique username")

	disallowed = regexp.MustCompile(`[^a-z0-9._]`)
	dotRuns    = regexp.MustCompile(`\.{2,}`)
	suffixMax  = big.NewInt(10_000)
)

// ExistsFunc reports whether a username is already taken.
type ExistsFunc func(ctx context.Context, username string) (bool, error)

type Generator struct {
	maxAttempts int
	suffix      func() (string, error)
}

func NewGenerator(maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{maxAttempts: maxAttempts, suffix: randomSuffix}
}

// GenerateFromName derives a username from a display name and returns the
// first candidate that exists reports as free.
func (g *Generator) GenerateFromName(ctx context.Context, name string, exists ExistsFunc) (string, error) {
	base := truncate(Normalize(name))

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		suffix, err := g.suffix()
		if err != nil {
			return "", err
		}
		candidate := base + "." + suffix
		if len(candidate) > MaxLength {
			trimmed := strings.TrimRight(base[:MaxLength-len(suffix)-1], ".")
			candidate = trimmed + "." + suffix
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// Normalize lowercases name and reduces it to [a-z0-9._], with spaces
// becoming dots. An empty result becomes "user".
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", ".")
	s = disallowed.ReplaceAllString(s, "")
	s = dotRuns.ReplaceAllString(s, ".")
	s = strings.Trim(s, ".")
	if s == "" {
		return fallbackBase
	}
	return s
}

func truncate(base string) string {
	if len(base) <= BaseLength {
		return base
	}
	base = base[:BaseLength]
	if dot := strings.LastIndex(base, "."); dot > BaseLength-boundaryWindow {
		base = base[:dot]
	}
	return strings.TrimRight(base, ".")
}

func randomSuffix() (string, error) {
	n, err := rand.Int(rand.Reader, suffixMax)
	if err != nil {
		return "", fmt.Errorf("generate username suffix: %w", err)
	}
	return fmt.Sprintf("%0*d", suffixDigits, n.Int64()), nil
}
