package services

import (
	"strings"
	"time"
)

const (
	DateOfBirthLayout = "2006-01-02"
	MinimumVotingAge  = 18

	// InvalidAge is returned for dates that do not parse. It is below any
	// eligibility floor so a malformed record can never pass the age check.
	InvalidAge = -1
)

// AgeOn returns the whole years between dateOfBirth (YYYY-MM-DD) and now,
// compared on calendar fields in UTC.
func AgeOn(dateOfBirth string, now time.Time) int {
	dob, err := time.Parse(DateOfBirthLayout, strings.TrimSpace(dateOfBirth))
	if err != nil {
		return InvalidAge
	}
	now = now.UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return InvalidAge
	}
	return age
}

func IsEligible(dateOfBirth string, now time.Time, minimumAge int) bool {
	if minimumAge <= 0 {
		minimumAge = MinimumVotingAge
	}
	return AgeOn(dateOfBirth, now) >= minimumAge
}

func ValidDateOfBirth(dateOfBirth string) bool {
	_, err := time.Parse(DateOfBirthLayout, strings.TrimSpace(dateOfBirth))
	return err == nil
}

// FingerprintMatches compares a scanned payload with the enrolled template.
// An empty template matches nothing, including an empty payload.
func FingerprintMatches(template string, payload string) bool {
	if template == "" {
		return false
	}
	return template == payload
}
