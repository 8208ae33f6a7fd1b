package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ReferenceGenerator mints the provider-facing checkout reference. The
// HMAC tag keeps references non-guessable without storing a counter.
type ReferenceGenerator struct {
	secret string
}

func NewReferenceGenerator(secret string) *ReferenceGenerator {
	return &ReferenceGenerator{secret: secret}
}

func (g *ReferenceGenerator) Generate(cartKey string) string {
	nonce := uuid.NewString()

	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(fmt.Sprintf("cart:%s|nonce:%s", cartKey, nonce)))

	sum := mac.Sum(nil)
	tag := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum)

	return fmt.Sprintf(
		"SHOP-%s-%s",
		tag[:4],
		strings.ToUpper(nonce[:4]),
	)
}
