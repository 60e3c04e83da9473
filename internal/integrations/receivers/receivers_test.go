package receivers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := New([]string{" R1 ", "R2", "R1", ""}, []string{"OLD"})

	require.Equal(t, []string{"R1", "R2"}, r.ListActive())
	require.True(t, r.IsRecognized("R1"))
	require.True(t, r.IsRecognized(" OLD"))
	require.False(t, r.IsRecognized("R3"))
	require.False(t, r.IsRecognized(""))
}

func TestRegistry_ListActiveIsSnapshot(t *testing.T) {
	r := New([]string{"R1"}, nil)
	snap := r.ListActive()
	snap[0] = "MUTATED"
	require.Equal(t, []string{"R1"}, r.ListActive())
}
