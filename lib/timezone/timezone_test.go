package timezone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToday(t *testing.T) {
	today := Today()

	require.Equal(t, Location, today.Location())
	require.Equal(t, 0, today.Hour())
	require.Equal(t, 0, today.Minute())
	require.Equal(t, 0, today.Second())
	require.False(t, today.After(Now()))
}
