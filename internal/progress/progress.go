// Package progress turns an achievement payload into a user's completion figures.
package progress

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/retroachievements"
)

var hundred = decimal.NewFromInt(100)

// Compute returns the progress of handle described by p. It never fails: records whose
// earned date cannot be read count as not earned.
func Compute(handle domain.Handle, p *retroachievements.Payload) domain.UserProgress {
	up := domain.UserProgress{
		Handle:               handle,
		CompletionPercentage: decimal.Zero,
		Status:               domain.StatusOK,
	}

	if p == nil {
		return up
	}

	for _, a := range p.Achievements {
		up.TotalAchievements++
		if Earned(a.DateEarned) {
			up.CompletedAchievements++
		}
	}

	up.CompletionPercentage = Percentage(up.CompletedAchievements, up.TotalAchievements)
	return up
}

// Percentage returns completed/total*100 rounded half away from zero to 2 decimal places, 0 when total is 0.
func Percentage(completed, total uint) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(completed)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
}

// Earned reports whether a raw DateEarned value marks the achievement as earned: the value, a JSON string
// or number, must start with an integer greater than zero. "2024-01-02 10:00:00" is earned,
// "0", "", null and "abc" are not.
func Earned(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}

	var s string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		s = string(raw)
	default:
		return false
	}

	return leadingIntPositive(s)
}

// leadingIntPositive parses the longest integer prefix of s, after leading whitespace and an optional sign.
func leadingIntPositive(s string) bool {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	if s == "" {
		return false
	}

	negative := false
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		negative = true
		s = s[1:]
	}

	nonZero, digits := false, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		digits++
		if r != '0' {
			nonZero = true
		}
	}

	return digits > 0 && nonZero && !negative
}
