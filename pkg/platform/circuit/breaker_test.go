package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

// ============================================================
// State transitions
// ============================================================

func (s *BreakerSuite) TestStartsClosed() {
	b := New("enclave")

	s.False(b.IsOpen())
	s.Equal(StateClosed, b.State())
	s.Equal("enclave", b.Name())
}

func (s *BreakerSuite) TestOpensAtFailureThreshold() {
	b := New("enclave", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		useFallback, change := b.RecordFailure()
		s.False(useFallback)
		s.False(change.Opened)
	}

	useFallback, change := b.RecordFailure()
	s.True(useFallback)
	s.True(change.Opened)
	s.True(b.IsOpen())
}

func (s *BreakerSuite) TestClosesAtSuccessThreshold() {
	b := New("enclave", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	s.Require().True(b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	s.False(usePrimary)
	s.False(change.Closed)
	s.True(b.IsOpen())

	usePrimary, change = b.RecordSuccess()
	s.True(usePrimary)
	s.True(change.Closed)
	s.False(b.IsOpen())
}

func (s *BreakerSuite) TestRepeatFailuresWhileOpenDoNotReannounce() {
	b := New("enclave", WithFailureThreshold(1))

	b.RecordFailure()
	s.Require().True(b.IsOpen())

	// Already open: still routes to fallback, but no second transition.
	useFallback, change := b.RecordFailure()
	s.True(useFallback)
	s.False(change.Opened)
}

// ============================================================
// Counter reset rules
// ============================================================

func (s *BreakerSuite) TestSuccessResetsFailureCount() {
	b := New("enclave", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()
	s.False(b.IsOpen())

	b.RecordFailure()
	s.True(b.IsOpen())
}

func (s *BreakerSuite) TestFailureResetsSuccessCount() {
	b := New("enclave", WithFailureThreshold(1), WithSuccessThreshold(3))

	b.RecordFailure()
	s.Require().True(b.IsOpen())

	b.RecordSuccess()
	b.RecordSuccess()
	b.RecordFailure()

	// Recovery starts over after the failure.
	b.RecordSuccess()
	b.RecordSuccess()
	s.True(b.IsOpen())
	b.RecordSuccess()
	s.False(b.IsOpen())
}

func (s *BreakerSuite) TestResetForcesClosed() {
	b := New("enclave", WithFailureThreshold(1))

	b.RecordFailure()
	s.Require().True(b.IsOpen())

	b.Reset()
	s.False(b.IsOpen())
	s.Equal(StateClosed, b.State())
}

// ============================================================
// Concurrency
// ============================================================

func (s *BreakerSuite) TestConcurrentRecordingDoesNotRace() {
	b := New("enclave", WithFailureThreshold(5), WithSuccessThreshold(5))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (n+j)%2 == 0 {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
			}
		}(i)
	}
	wg.Wait()

	// State is whatever the interleaving produced; it must be coherent.
	st := b.State()
	s.True(st == StateClosed || st == StateOpen)
}
