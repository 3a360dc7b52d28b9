package residual

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestStop(t *testing.T) {
	require.InDelta(t, 1e-20, Stop(1e-10, 1), 1e-30)
	require.InDelta(t, 4e-20, Stop(1e-10, 4), 1e-30)
}

func TestL2Converged(t *testing.T) {
	require.True(t, L2Converged(1e-11, 1e-10, false))
	require.False(t, L2Converged(1e-9, 1e-10, false))
	require.True(t, L2Converged(1e-9, 1e-10, true)) // breakdown forces done
}

func TestHeavyQuarkConverged(t *testing.T) {
	require.True(t, HeavyQuarkConverged(0, 0.1, 1e-11, 1e-10))
	require.False(t, HeavyQuarkConverged(1, 0.1, 1e-11, 1e-10)) // not right after reliable update
	require.False(t, HeavyQuarkConverged(0, 0, 1e-11, 1e-10))   // reliable updates disabled
	require.False(t, HeavyQuarkConverged(0, 0.1, 1e-9, 1e-10))  // residual too large
}

func TestConverged(t *testing.T) {
	require.True(t, Converged(L2, true, false))
	require.False(t, Converged(L2, false, true))
	require.True(t, Converged(L2|HeavyQuark, true, true))
	require.False(t, Converged(L2|HeavyQuark, true, false))
}

func TestColumnConverged(t *testing.T) {
	require.True(t, ColumnConverged(1e-11, 1e-10))
	require.False(t, ColumnConverged(1e-9, 1e-10))
}

func TestAllColumnsConverged(t *testing.T) {
	r2 := []float64{1e-11, 1e-12, 1e-13}
	stop := []float64{1e-10, 1e-10, 1e-10}
	require.True(t, AllColumnsConverged(r2, stop))

	// The aggregate L2 norm of the per-column residuals should also be
	// well within the aggregate stopping threshold whenever every
	// column individually converges.
	require.Less(t, floats.Norm(r2, 2), floats.Norm(stop, 2))

	r2[1] = 1e-5
	require.False(t, AllColumnsConverged(r2, stop))
}
