package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/vmem"
)

// DefaultLimit bounds test sources so a runaway loop fails fast instead of
// exhausting the machine.
const DefaultLimit = 256 << 20

// LimitedSource returns the host mapping source capped at limit bytes.
// The cleanup checks that every mapping was handed back, so register it
// before anything that unmaps on cleanup.
//
// Example:
//
//	src := testutil.LimitedSource(t, testutil.DefaultLimit)
//	a, err := alloc.New(&alloc.Options{Source: src})
//	require.NoError(t, err)
//	t.Cleanup(func() { require.NoError(t, a.Close()) })
func LimitedSource(t testing.TB, limit int) *vmem.Limited {
	t.Helper()
	src := vmem.NewLimited(vmem.System(), limit)
	t.Cleanup(func() {
		require.Zero(t, src.InUse(), "mapped bytes left after cleanup")
		require.Zero(t, src.Live(), "mappings left after cleanup")
	})
	return src
}
