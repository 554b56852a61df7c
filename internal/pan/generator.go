package pan

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultBIN is the issuer prefix used when the caller does not supply one.
const DefaultBIN = "4276"

const panLength = 16

// Generator produces Luhn-valid sixteen-digit card numbers. Uniqueness is
// the caller's concern: card creation encrypts each candidate and checks
// the store for a collision before accepting it.
type Generator struct {
	bin string
}

func NewGenerator(bin string) *Generator {
	if bin == "" || len(bin) > panLength-1 || stripNonDigits(bin) != bin {
		bin = DefaultBIN
	}
	return &Generator{bin: bin}
}

// Generate returns the BIN followed by random digits up to fifteen, with a
// trailing Luhn check digit appended.
func (g *Generator) Generate() (string, error) {
	body := make([]byte, 0, panLength)
	body = append(body, g.bin...)
	for len(body) < panLength-1 {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate card number: %w", err)
		}
		body = append(body, byte('0'+n.Int64()))
	}
	return string(body) + string('0'+byte(checkDigit(string(body)))), nil
}

// checkDigit computes the Luhn check digit for a fifteen-digit body:
// walking right to left, every other digit starting with the rightmost is
// doubled (minus nine when above nine) before summing.
func checkDigit(body string) int {
	sum := 0
	double := true
	for i := len(body) - 1; i >= 0; i-- {
		digit := int(body[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return (10 - sum%10) % 10
}

// ValidateLuhn checks a full sixteen-digit number: non-digits are stripped,
// the length must be exactly sixteen, and the alternating-doubling sum over
// all digits must be divisible by ten.
func ValidateLuhn(number string) bool {
	digits := stripNonDigits(number)
	if len(digits) != panLength {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		digit := int(digits[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}
