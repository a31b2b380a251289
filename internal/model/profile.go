package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// UserProfile carries the optional self-assessment preferences. A nil
// *UserProfile means no profile was supplied, which is scored differently
// from an empty one.
type UserProfile struct {
	Symptoms          []string `json:"symptoms,omitempty"`
	PreferredCategory string   `json:"preferred_category,omitempty"`
	AgeGroup          string   `json:"age_group,omitempty"`
	PreferOnline      *bool    `json:"prefer_online,omitempty"`
	PreferFree        *bool    `json:"prefer_free,omitempty"`
}

// SeverityCode is the coarse assessment classification. The empty value
// means no assessment was taken.
type SeverityCode string

const (
	SeverityNone SeverityCode = ""
	SeverityLow  SeverityCode = "LOW"
	SeverityMid  SeverityCode = "MID"
	SeverityHigh SeverityCode = "HIGH"
)

// ErrInvalidSeverity is returned by ParseSeverity for unknown codes.
var ErrInvalidSeverity = eris.New("model: invalid severity code")

// ParseSeverity normalizes a severity code. The empty string parses to
// SeverityNone.
func ParseSeverity(s string) (SeverityCode, error) {
	switch code := SeverityCode(strings.ToUpper(strings.TrimSpace(s))); code {
	case SeverityNone, SeverityLow, SeverityMid, SeverityHigh:
		return code, nil
	default:
		return SeverityNone, eris.Wrapf(ErrInvalidSeverity, "%q", s)
	}
}

// Present reports whether an assessment severity was supplied.
func (s SeverityCode) Present() bool {
	return s != SeverityNone
}
