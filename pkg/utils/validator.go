package utils

import (
	"fmt"
	"regexp"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates a guardian/billing email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateAmount validates a payment amount
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %.2f", amount)
	}
	if amount > 1000000 {
		return fmt.Errorf("amount exceeds maximum limit: %.2f", amount)
	}
	return nil
}

// PaymentMethods lists the accepted payment methods for proof submissions
var PaymentMethods = []string{"bank_transfer", "cash", "card", "mobile_money"}

// ValidatePaymentMethod checks a payment method against the accepted set
func ValidatePaymentMethod(method string) error {
	for _, m := range PaymentMethods {
		if method == m {
			return nil
		}
	}
	return fmt.Errorf("unsupported payment method: %s", method)
}

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// SanitizeString removes control characters from user-supplied text
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
