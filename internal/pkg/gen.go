package pkg

import (
	"crypto/rand"
	"math/big"
)

// GenerateGameID - generates a short numeric identifier that is easy to share
// out-of-band.
func GenerateGameID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(99999999))
	if err != nil {
		return ""
	}
	return n.String()
}
