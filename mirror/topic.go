package mirror

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/hashbeam/librarian"
)

// topicContext separates discovery topics from any other use of the key.
const topicContext = "librarian"

// Topic derives the registry repository name for an archive key: the hex
// form of a BLAKE2b-256 MAC over a fixed context string, keyed by the raw
// key bytes. Holders of the key compute the same name, while the key
// itself never appears in registry paths.
func Topic(key librarian.Key) (string, error) {
	raw, err := hex.DecodeString(string(key))
	if err != nil {
		return "", fmt.Errorf("decode key: %w", err)
	}
	h, err := blake2b.New256(raw)
	if err != nil {
		return "", fmt.Errorf("derive topic: %w", err)
	}
	h.Write([]byte(topicContext))
	return hex.EncodeToString(h.Sum(nil)), nil
}
