package session

import (
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
)

// MinimumAge is the legal gambling age the age gate enforces
const MinimumAge = 18

// NormalizeMpesaNumber strips spaces and a leading '+' and checks the
// accepted formats: 07XXXXXXXX or 2547XXXXXXXX.
func NormalizeMpesaNumber(value string) (string, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	raw = strings.TrimPrefix(raw, "+")
	if raw == "" {
		return "", apperrors.Validation("M-Pesa number is required.")
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return "", apperrors.Validation("M-Pesa number must contain digits only.")
		}
	}
	if (len(raw) == 10 && strings.HasPrefix(raw, "07")) || (len(raw) == 12 && strings.HasPrefix(raw, "2547")) {
		return raw, nil
	}
	return "", apperrors.Validation("M-Pesa number must be 10 digits starting with 07 or 12 digits starting with 2547.")
}

// Validate checks the sign-up form locally and normalizes the M-Pesa number
func (p *RegisterPayload) Validate() error {
	p.Email = strings.TrimSpace(p.Email)
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return apperrors.Validation("Enter a valid email address.")
	}
	if p.Password == "" {
		return apperrors.Validation("Password is required.")
	}
	number, err := NormalizeMpesaNumber(p.MpesaNumber)
	if err != nil {
		return err
	}
	p.MpesaNumber = number
	p.ReferralCode = strings.TrimSpace(p.ReferralCode)
	return nil
}

// ageFromBirthYear mirrors the age gate: only the year is asked for
func ageFromBirthYear(year int, now time.Time) int {
	return now.Year() - year
}
