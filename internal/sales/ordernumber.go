package sales

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateOrderNumber returns ORD-<unix ms>-<3 digit random>.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%03d", now.UnixMilli(), rand.Intn(1000))
}
