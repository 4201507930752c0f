package event

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// GroupHash fingerprints an error for grouping. It is a pure function of the
// message text alone, so two occurrences with identical text cluster together
// regardless of where they originated.
func GroupHash(message string) string {
	sum := md5.Sum([]byte(message))
	return hex.EncodeToString(sum[:])
}

// LocationHash fingerprints by source position instead of message. Used for
// server-process reports, where messages are often generic ("fatal error")
// and would collapse unrelated errors into one group.
func LocationHash(file string, line int) string {
	return GroupHash(fmt.Sprintf("%s:%d", file, line))
}
