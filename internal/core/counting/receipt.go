package counting

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SaltSize is the number of random bytes committed into every receipt.
const SaltSize = 32

// NewSalt draws a fresh salt from the operating system CSPRNG. Salts must
// never be derived from anything observable (time, sequence, voter data).
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}
	return salt, nil
}

// EncodeRanking is the canonical byte form of a ranking: a JSON array of
// integers in preference order without whitespace, e.g. [3,1,2].
func EncodeRanking(ranking Ballot) ([]byte, error) {
	if ranking == nil {
		ranking = Ballot{}
	}
	b, err := json.Marshal([]CandidateID(ranking))
	if err != nil {
		return nil, fmt.Errorf("failed to encode ranking: %w", err)
	}
	return b, nil
}

// ReceiptFor returns hex(sha256(salt || EncodeRanking(ranking))).
func ReceiptFor(ranking Ballot, salt []byte) (string, error) {
	encoded, err := EncodeRanking(ranking)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write(salt)
	h.Write(encoded)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyReceipt reports whether receipt commits to (ranking, salt).
func VerifyReceipt(ranking Ballot, salt []byte, receipt string) (bool, error) {
	expected, err := ReceiptFor(ranking, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(receipt)) == 1, nil
}
