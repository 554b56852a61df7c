package pan

import (
	"strings"
	"testing"
)

func TestGenerateProducesSixteenDigits(t *testing.T) {
	gen := NewGenerator("")
	number, err := gen.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(number) != 16 {
		t.Fatalf("unexpected length %d: %q", len(number), number)
	}
	if stripNonDigits(number) != number {
		t.Fatalf("expected digits only, got %q", number)
	}
	if !strings.HasPrefix(number, DefaultBIN) {
		t.Fatalf("expected default BIN prefix, got %q", number)
	}
}

func TestGeneratedNumbersPassLuhn(t *testing.T) {
	gen := NewGenerator("")
	for i := 0; i < 10000; i++ {
		number, err := gen.Generate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ValidateLuhn(number) {
			t.Fatalf("generated number failed Luhn validation: %q", number)
		}
	}
}

func TestGenerateWithCustomBIN(t *testing.T) {
	gen := NewGenerator("5555")
	number, err := gen.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(number, "5555") {
		t.Fatalf("expected custom BIN prefix, got %q", number)
	}
	if !ValidateLuhn(number) {
		t.Fatalf("custom BIN number failed Luhn validation: %q", number)
	}
}

func TestInvalidBINFallsBackToDefault(t *testing.T) {
	for _, bin := range []string{"12a4", "1234567890123456"} {
		number, err := NewGenerator(bin).Generate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(number, DefaultBIN) {
			t.Fatalf("expected default BIN for invalid %q, got %q", bin, number)
		}
	}
}

func TestValidateLuhnVectors(t *testing.T) {
	valid := []string{"4276123456789014", "4111111111111111", "4276 1234 5678 9014"}
	for _, number := range valid {
		if !ValidateLuhn(number) {
			t.Fatalf("expected %q to validate", number)
		}
	}
	invalid := []string{"1234567890123456", "4276123456789012", "", "4276", "427612345678901"}
	for _, number := range invalid {
		if ValidateLuhn(number) {
			t.Fatalf("expected %q to fail validation", number)
		}
	}
}

func TestCheckDigit(t *testing.T) {
	if got := checkDigit("427612345678901"); got != 4 {
		t.Fatalf("unexpected check digit: %d", got)
	}
	if got := checkDigit("411111111111111"); got != 1 {
		t.Fatalf("unexpected check digit: %d", got)
	}
}
