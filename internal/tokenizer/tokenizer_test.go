package tokenizer

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEstimator returns the shared estimator, skipping when the
// vocabulary cannot be fetched (offline sandboxes).
func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	est, err := Default()
	if err != nil {
		t.Skipf("cl100k_base vocabulary unavailable: %v", err)
	}
	return est
}

func TestEstimator_Count(t *testing.T) {
	est := newTestEstimator(t)
	assert.Positive(t, est.Count("Hello, world!"))
}

func TestEstimator_Count_EmptyString(t *testing.T) {
	est := newTestEstimator(t)
	assert.Zero(t, est.Count(""))
}

func TestEstimator_Count_Deterministic(t *testing.T) {
	est := newTestEstimator(t)

	text := "The quick brown fox jumps over the lazy dog."
	first := est.Count(text)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, est.Count(text), "count changed between calls")
	}
}

func TestEstimator_Count_IsNotCharacterCount(t *testing.T) {
	est := newTestEstimator(t)

	// Common English words are single BPE tokens.
	assert.Equal(t, 50, est.Count(strings.Repeat(" hello", 50)))
}

func TestEstimator_Count_SpecialTokenTextIsOrdinary(t *testing.T) {
	est := newTestEstimator(t)

	marker := "<|endoftext|>"
	got := est.Count(marker)
	assert.Equal(t, len(est.enc.EncodeOrdinary(marker)), got)
	assert.Greater(t, got, 1, "marker must not collapse into one control token")

	text := "before " + marker + " after"
	assert.Equal(t, len(est.enc.EncodeOrdinary(text)), est.Count(text))
}

func TestEstimator_ConcurrentUse(t *testing.T) {
	est := newTestEstimator(t)
	text := strings.Repeat("concurrency is not parallelism. ", 40)
	want := est.Count(text)

	var wg sync.WaitGroup
	got := make([]int, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = est.Count(text)
		}(i)
	}
	wg.Wait()

	for _, n := range got {
		assert.Equal(t, want, n)
	}
}

func TestNewEstimatorForModel(t *testing.T) {
	ref := newTestEstimator(t)
	est, err := NewEstimatorForModel("gpt-4")
	require.NoError(t, err)

	text := "gpt-4 shares the reference vocabulary"
	assert.Equal(t, ref.Count(text), est.Count(text))
}

func TestNewEstimatorForModel_Unknown(t *testing.T) {
	_, err := NewEstimatorForModel("definitely-not-a-model")
	assert.Error(t, err)
}

func TestDefault_Shared(t *testing.T) {
	a := newTestEstimator(t)
	b, err := Default()
	require.NoError(t, err)
	assert.Same(t, a, b)
}
