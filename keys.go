package librarian

import (
	"fmt"
	"regexp"
	"strings"
)

// KeyLen is the length of an archive key in hexadecimal characters.
const KeyLen = 64

// Key identifies an archive: 64 lowercase hexadecimal characters. Keys
// double as directory names inside the library directory.
type Key string

var (
	exactKeyRE   = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	leadingKeyRE = regexp.MustCompile(`^[0-9a-fA-F]{64}`)
	linkKeyRE    = regexp.MustCompile(`(?:^|[^0-9a-fA-F])([0-9a-fA-F]{64})(?:[^0-9a-fA-F]|$)`)
)

// ParseKey validates s as an archive key. Uppercase hex is accepted and
// normalized to lowercase.
func ParseKey(s string) (Key, error) {
	if !exactKeyRE.MatchString(s) {
		return "", fmt.Errorf("librarian: invalid key %q: want %d hex characters", s, KeyLen)
	}
	return Key(strings.ToLower(s)), nil
}

// ExtractKey returns the archive key embedded in link, if any. It accepts
// a bare key, a link whose leading 64 characters form a key (the pattern
// archive directories follow), or a key delimited inside a longer link
// such as "archive://<key>/path".
func ExtractKey(link string) (Key, bool) {
	if m := leadingKeyRE.FindString(link); m != "" {
		return Key(strings.ToLower(m)), true
	}
	if m := linkKeyRE.FindStringSubmatch(link); m != nil {
		return Key(strings.ToLower(m[1])), true
	}
	return "", false
}

func (k Key) String() string { return string(k) }

// leadingKey reports whether name qualifies as an archive directory name:
// its leading 64 characters form a key.
func leadingKey(name string) (Key, bool) {
	m := leadingKeyRE.FindString(name)
	if m == "" {
		return "", false
	}
	return Key(strings.ToLower(m)), true
}
