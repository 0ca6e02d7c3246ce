package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff_NextDelay(t *testing.T) {
	backoff := DefaultBackoff()

	require.Equal(t, 1*time.Second, backoff.NextDelay(0))
	require.Equal(t, 2*time.Second, backoff.NextDelay(1))
	require.Equal(t, 4*time.Second, backoff.NextDelay(2))
	require.Equal(t, 8*time.Second, backoff.NextDelay(3))
	require.Equal(t, 32*time.Second, backoff.NextDelay(5))

	// capped from attempt 6 onwards
	require.Equal(t, 60*time.Second, backoff.NextDelay(6))
	require.Equal(t, 60*time.Second, backoff.NextDelay(10))
	require.Equal(t, 60*time.Second, backoff.NextDelay(100))
}
