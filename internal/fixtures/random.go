// Package fixtures generates request payloads with unique, randomized fields so
// every test works on its own isolated data.
package fixtures

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// EmailDomain is the domain of generated test addresses.
const EmailDomain = "echostash-test.com"

var now = time.Now

// RandomString returns n random lowercase base36 characters (8 when n <= 0).
func RandomString(n int) string {
	if n <= 0 {
		n = 8
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	return b.String()
}

// UniqueID is base36 epoch milliseconds followed by six random characters.
func UniqueID() string {
	return strconv.FormatInt(now().UnixMilli(), 36) + RandomString(6)
}

// UniqueName is prefix_<millis>_<6 random chars>.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, now().UnixMilli(), RandomString(6))
}

// RandomEmail returns a throwaway address on EmailDomain.
func RandomEmail() string {
	return fmt.Sprintf("test_%s@%s", RandomString(8), EmailDomain)
}
