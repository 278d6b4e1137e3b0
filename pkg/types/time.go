package types

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Timestamp is a point in time with microsecond resolution, as used by the
// network for attestation times and past-perfect barriers.
type Timestamp uint64

const microsPerSecond = 1_000_000

// MaxTimestamp is the largest representable timestamp.
const MaxTimestamp = Timestamp(^uint64(0))

func FromMicros(micros uint64) Timestamp {
	return Timestamp(micros)
}

func FromSeconds(seconds uint64) Timestamp {
	return Timestamp(seconds * microsPerSecond)
}

func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// Now returns the current wall clock time.
func Now() Timestamp {
	return SystemClock{}.Now()
}

func (t Timestamp) Micros() uint64 {
	return uint64(t)
}

func (t Timestamp) Seconds() uint64 {
	return uint64(t) / microsPerSecond
}

func (t Timestamp) Time() time.Time {
	return time.UnixMicro(int64(t))
}

func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d.Microseconds())
}

// Sub subtracts d, saturating at zero.
func (t Timestamp) Sub(d time.Duration) Timestamp {
	delta := Timestamp(d.Microseconds())
	if delta > t {
		return 0
	}
	return t - delta
}

func (t Timestamp) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

// ParseHexSeconds parses a block-tag style timestamp: a hex encoded number of
// seconds, or one of "earliest", "latest", "finalized" and "pending".
func ParseHexSeconds(s string) (Timestamp, error) {
	switch s {
	case "earliest":
		return 0, nil
	case "latest", "finalized", "pending":
		return Now(), nil
	}
	seconds, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: expected a hex string", s)
	}
	return FromSeconds(seconds), nil
}

// Clock abstracts the time source so barrier and freshness logic can be tested.
type Clock interface {
	Now() Timestamp
}

type SystemClock struct{}

func (SystemClock) Now() Timestamp {
	return FromTime(time.Now())
}

// MockClock is a manually driven clock for tests.
type MockClock struct {
	mu   sync.Mutex
	time Timestamp
}

func NewMockClock(t Timestamp) *MockClock {
	return &MockClock{time: t}
}

func (m *MockClock) Now() Timestamp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.time
}

func (m *MockClock) Set(t Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.time = t
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.time = m.time.Add(d)
}
