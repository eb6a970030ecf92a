// Package strength scores plaintext credentials on a deterministic 0..4 scale.
package strength

import "unicode"

// Score rates a secret: +1 for length >= 8, +1 for length >= 12, +1 for mixed
// case, +1 for a digit, +1 for a non-alphanumeric rune; capped at 4.
// The score is recomputed and stored whenever a secret changes.
func Score(secret string) int {
	if secret == "" {
		return 0
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	runes := []rune(secret)
	for _, r := range runes {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	score := 0
	if len(runes) >= 8 {
		score++
	}
	if len(runes) >= 12 {
		score++
	}
	if hasUpper && hasLower {
		score++
	}
	if hasDigit {
		score++
	}
	if hasSymbol {
		score++
	}
	if score > 4 {
		score = 4
	}
	return score
}
