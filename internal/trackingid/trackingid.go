// Package trackingid generates human-readable parcel tracking identifiers
// of the form ZAP-<base36 millis>-<6 hex>.
package trackingid

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const Prefix = "ZAP"

var pattern = regexp.MustCompile(`^ZAP-[0-9A-Z]+-[0-9A-F]{6}$`)

type Generator struct {
	Now  func() time.Time
	Rand io.Reader
}

var std = Generator{Now: time.Now, Rand: rand.Reader}

// New returns a fresh tracking id using the wall clock and crypto/rand.
func New() string {
	return std.New()
}

func (g Generator) New() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}

	b := make([]byte, 3)
	if _, err := io.ReadFull(r, b); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to the clock.
		n := now().UnixNano()
		b[0], b[1], b[2] = byte(n>>16), byte(n>>8), byte(n)
	}

	ts := strings.ToUpper(strconv.FormatInt(now().UnixMilli(), 36))
	return Prefix + "-" + ts + "-" + strings.ToUpper(hex.EncodeToString(b))
}

// Valid reports whether id has the tracking id shape.
func Valid(id string) bool {
	return pattern.MatchString(id)
}
