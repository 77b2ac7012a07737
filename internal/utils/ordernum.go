package utils

import (
    "crypto/rand"
    "fmt"
    "math/big"
    "time"
)

// NewOrderNumber builds a human-readable order number of the form
// ORD-YYYYMMDD-XXXX, where XXXX is a random 4-digit suffix.  The suffix is
// drawn from crypto/rand; collisions within a day are possible and are
// handled by the caller retrying against the unique order_number column.
func NewOrderNumber(now time.Time) string {
    n, err := rand.Int(rand.Reader, big.NewInt(10000))
    if err != nil {
        // crypto/rand only fails when the platform source is broken; fall
        // back to the clock so order creation itself keeps working.
        n = big.NewInt(now.UnixNano() % 10000)
    }
    return fmt.Sprintf("ORD-%s-%04d", now.UTC().Format("20060102"), n.Int64())
}
