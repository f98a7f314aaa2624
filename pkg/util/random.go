package util

import (
	"fmt"
	"math/rand"
)

// GenerateFallbackVANumber produces a bank-style virtual account number used
// when the payment gateway is unreachable. The 8808 prefix marks it as a
// non-gateway number.
func GenerateFallbackVANumber() string {
	return fmt.Sprintf("8808%012d", rand.Int63n(1_000_000_000_000))
}
