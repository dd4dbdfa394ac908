package room

import (
	nanoid "github.com/jaevor/go-nanoid"
)

// CodeAlphabet is the base36 alphabet room codes are drawn from.
const CodeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// DefaultCodeLength is the length of generated room codes.
const DefaultCodeLength = 6

// MaxCodeLength bounds codes accepted from clients.
const MaxCodeLength = 64

// NewCodeGenerator returns a generator of random room codes of the given length.
func NewCodeGenerator(length int) (func() string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return nanoid.CustomASCII(CodeAlphabet, length)
}

// IsValidCode checks that a code could name a room: lowercase letters,
// digits, '-' or '_'. Codes are case-sensitive, so uppercase never matches.
func IsValidCode(code string) bool {
	if code == "" || len(code) > MaxCodeLength {
		return false
	}
	for _, c := range code {
		if !isCodeChar(c) {
			return false
		}
	}
	return true
}

func isCodeChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || c == '-' || c == '_'
}
