// Package idgen issues the identifiers the print engine hands out: human
// typeable certificate numbers and opaque batch/request tokens.
package idgen

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// alphabet is Crockford base32: digits plus letters with I, L, O and U
// removed so a number read over the phone cannot be confused with 1 or 0.
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// CertificateNumberLength is the fixed length of an encoded certificate
// number: 96 bits at 5 bits per symbol.
const CertificateNumberLength = 20

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Generator produces certificate numbers. The random components are fixed
// for the process lifetime; only the counter advances, with a single atomic
// increment, so the generator is safe for concurrent use without locking.
type Generator struct {
	rand24  uint32
	rand16  uint16
	counter atomic.Uint32
	now     func() time.Time
}

func NewGenerator() (*Generator, error) {
	return newGenerator(time.Now)
}

func newGenerator(now func() time.Time) (*Generator, error) {
	var seed [9]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("failed to seed id generator: %w", err)
	}

	g := &Generator{
		rand24: uint32(seed[0])<<16 | uint32(seed[1])<<8 | uint32(seed[2]),
		rand16: uint16(seed[3])<<8 | uint16(seed[4]),
		now:    now,
	}
	g.counter.Store(binary.BigEndian.Uint32(seed[5:9]))
	return g, nil
}

// CertificateNumber encodes 96 bits: 32-bit unix seconds, the process's
// 24-bit and 16-bit random values, and a 24-bit incrementing counter. The
// time component leads, so numbers issued by one process sort by issue time.
func (g *Generator) CertificateNumber() string {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(g.now().Unix()))

	buf[4] = byte(g.rand24 >> 16)
	buf[5] = byte(g.rand24 >> 8)
	buf[6] = byte(g.rand24)

	binary.BigEndian.PutUint16(buf[7:9], g.rand16)

	count := g.counter.Add(1) & 0xFFFFFF
	buf[9] = byte(count >> 16)
	buf[10] = byte(count >> 8)
	buf[11] = byte(count)

	return encoding.EncodeToString(buf[:])
}

// Token returns an opaque globally unique identifier used for batch ids and
// provider-facing request ids. No ordering guarantee.
func Token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
