// Package phone canonicalizes raw phone input and masks numbers for logs.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Normalizer turns user input into E.164.
type Normalizer interface {
	Normalize(raw string) (string, error)
}

type E164Normalizer struct {
	defaultRegion string
}

// NewE164Normalizer parses numbers without a leading + against defaultRegion
// (ISO 3166 alpha-2, e.g. "US").
func NewE164Normalizer(defaultRegion string) *E164Normalizer {
	return &E164Normalizer{defaultRegion: strings.ToUpper(defaultRegion)}
}

func (n *E164Normalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	num, err := phonenumbers.Parse(raw, n.defaultRegion)
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
