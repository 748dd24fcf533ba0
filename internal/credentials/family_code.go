// Package credentials generates the shareable codes handed out to families.
package credentials

import (
	"crypto/rand"
	"math/big"
)

const (
	// FamilyCodeLength is the number of characters in a family code
	FamilyCodeLength = 6
	familyAlphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateFamilyCode returns a random uppercase base-36 code
func GenerateFamilyCode() (string, error) {
	return randomString(familyAlphabet, FamilyCodeLength)
}

// randomString draws n characters uniformly from alphabet
func randomString(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[num.Int64()]
	}
	return string(out), nil
}
