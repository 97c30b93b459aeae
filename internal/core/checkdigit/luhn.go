package checkdigit

import (
	"fmt"
	"strings"
)

const (
	// AlgorithmLuhnMod10 is the classic Luhn algorithm over decimal digits.
	AlgorithmLuhnMod10 = "luhn-mod-10"

	// AlgorithmLuhnMod30 is the Luhn mod-N variant over a 30-character
	// alphabet that omits visually ambiguous characters (B/8, I/1, O/0, Q, S/5, Z/2).
	AlgorithmLuhnMod30 = "luhn-mod-30"

	mod10Charset = "0123456789"
	mod30Charset = "0123456789ACDEFGHJKLMNPRTUVWXY"
)

// luhnModN implements the Luhn mod-N check digit over an arbitrary alphabet.
type luhnModN struct {
	name    string
	charset string
	index   map[rune]int
}

// NewLuhnMod10 returns the Luhn algorithm over "0123456789".
func NewLuhnMod10() Algorithm {
	return newLuhnModN(AlgorithmLuhnMod10, mod10Charset)
}

// NewLuhnMod30 returns the Luhn mod-30 algorithm.
func NewLuhnMod30() Algorithm {
	return newLuhnModN(AlgorithmLuhnMod30, mod30Charset)
}

func newLuhnModN(name, charset string) *luhnModN {
	index := make(map[rune]int, len(charset))
	for i, c := range charset {
		index[c] = i
	}
	return &luhnModN{name: name, charset: charset, index: index}
}

func (l *luhnModN) Name() string {
	return l.name
}

// CheckDigit computes the check digit such that the decorated identifier
// validates under the standard Luhn mod-N sum.
func (l *luhnModN) CheckDigit(identifier string) (string, error) {
	identifier = strings.ToUpper(identifier)
	if identifier == "" {
		return "", fmt.Errorf("cannot compute check digit of empty identifier")
	}

	n := len(l.charset)
	factor := 2
	sum := 0

	// Work right to left, doubling every other code point.
	runes := []rune(identifier)
	for i := len(runes) - 1; i >= 0; i-- {
		codePoint, ok := l.index[runes[i]]
		if !ok {
			return "", fmt.Errorf("character %q not valid for %s", runes[i], l.name)
		}
		addend := factor * codePoint
		if factor == 2 {
			factor = 1
		} else {
			factor = 2
		}
		sum += addend/n + addend%n
	}

	remainder := sum % n
	checkCodePoint := (n - remainder) % n
	return string(l.charset[checkCodePoint]), nil
}

func (l *luhnModN) Append(identifier string) (string, error) {
	digit, err := l.CheckDigit(identifier)
	if err != nil {
		return "", err
	}
	return identifier + digit, nil
}

// Verify treats the last character as the check digit for the rest.
func (l *luhnModN) Verify(identifier string) (bool, error) {
	if len(identifier) < 2 {
		return false, fmt.Errorf("identifier too short to carry a check digit")
	}
	runes := []rune(strings.ToUpper(identifier))
	undecorated := string(runes[:len(runes)-1])
	expected, err := l.CheckDigit(undecorated)
	if err != nil {
		return false, err
	}
	return string(runes[len(runes)-1]) == expected, nil
}
