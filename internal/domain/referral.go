package domain

import (
	"crypto/sha256"
	"encoding/base32"
	"strconv"
	"strings"
	"unicode"
)

const referralCodePrefix = "AI"

var referralEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NormalizePhone keeps digits and a leading plus sign.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ReferralCode derives the shareable code for an account. The same name and
// phone always yield the same code.
func ReferralCode(name, phone string) string {
	return ReferralCodeAttempt(name, phone, 0)
}

// ReferralCodeAttempt is ReferralCode salted with attempt, used to move past a
// code already taken by another account. Attempt 0 is the unsalted code.
func ReferralCodeAttempt(name, phone string, attempt int) string {
	seed := strings.ToUpper(strings.Join(strings.Fields(name), " ")) + "|" + NormalizePhone(phone)
	if attempt > 0 {
		seed += "|" + strconv.Itoa(attempt)
	}
	sum := sha256.Sum256([]byte(seed))
	return referralCodePrefix + referralEncoding.EncodeToString(sum[:])[:6]
}

// NormalizeReferralCode upper-cases and trims a user supplied code and checks its shape.
func NormalizeReferralCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != len(referralCodePrefix)+6 || !strings.HasPrefix(code, referralCodePrefix) {
		return "", ErrInvalidReferralCode
	}
	for _, r := range code[len(referralCodePrefix):] {
		if !(r >= 'A' && r <= 'Z') && !(r >= '2' && r <= '7') {
			return "", ErrInvalidReferralCode
		}
	}
	return code, nil
}
