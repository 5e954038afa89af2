package runtimepolicy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakerrun/petriflow/instance"
)

func TestExponentialBackoffGrowsThenBlocks(t *testing.T) {
	onFailure := ExponentialBackoff(100*time.Millisecond, 2)

	s1 := onFailure(nil, 1, "boom")
	require.Equal(t, instance.StrategyRetryWithDelay, s1.Kind)
	assert.Equal(t, 100*time.Millisecond, s1.RetryDelay)

	s2 := onFailure(nil, 2, "boom")
	assert.Equal(t, 200*time.Millisecond, s2.RetryDelay)

	s3 := onFailure(nil, 3, "boom")
	assert.Equal(t, instance.StrategyBlockTransition, s3.Kind)
}

func TestAlwaysBlockNeverRetries(t *testing.T) {
	onFailure := AlwaysBlock()
	s := onFailure(nil, 1, "boom")
	assert.Equal(t, instance.StrategyBlockTransition, s.Kind)
}
