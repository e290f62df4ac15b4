package stopindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-router/internal/ident"
)

func TestBuildAndQuery(t *testing.T) {
	idx, err := Build(3, []Pattern{
		{Stop: 0, Routes: []ident.RouteID{0, 2}, Transfers: []Transfer{{Target: 1, DistanceKM: 0.2}}},
		{Stop: 1, Routes: []ident.RouteID{1}, Transfers: []Transfer{{Target: 0, DistanceKM: 0.2}}},
		{Stop: 2, Routes: nil, Transfers: nil},
	})
	require.NoError(t, err)

	assert.Equal(t, []ident.RouteID{0, 2}, idx.Routes(0))
	assert.Equal(t, []ident.RouteID{1}, idx.Routes(1))
	assert.Empty(t, idx.Routes(2))
	assert.Equal(t, ident.StopID(1), idx.Transfers(0)[0].Target)
	assert.Equal(t, ident.StopID(0), idx.Transfers(1)[0].Target)
}

func TestBuildRejectsSelfTransfer(t *testing.T) {
	_, err := Build(1, []Pattern{
		{Stop: 0, Transfers: []Transfer{{Target: 0, DistanceKM: 0.1}}},
	})
	assert.Error(t, err)
}

func TestBuildRejectsLongTransfer(t *testing.T) {
	_, err := Build(2, []Pattern{
		{Stop: 0, Transfers: []Transfer{{Target: 1, DistanceKM: 1.0}}},
		{Stop: 1},
	})
	assert.Error(t, err)
}
