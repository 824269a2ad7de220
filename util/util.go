package util

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// HashToken computes the hex digest under which a token secret is stored.
// Only the digest ever reaches the database.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// TruncateToMinute drops sub-minute precision from ballot timestamps so that
// submission order within a minute cannot be correlated with issuance logs.
func TruncateToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

func IndexOf(element string, data []string) int {
	for i, v := range data {
		if element == v {
			return i
		}
	}
	return -1
}

// UniqueStrings reports whether all entries of data are distinct.
func UniqueStrings(data []string) bool {
	seen := make(map[string]struct{}, len(data))
	for _, v := range data {
		if _, ok := seen[v]; ok {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}
