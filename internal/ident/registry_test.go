package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertStopIsIdempotent(t *testing.T) {
	r := New()
	a := r.InsertStop("S1")
	b := r.InsertStop("S1")
	assert.Equal(t, a, b)
	assert.Equal(t, 1, r.StopCount())
}

func TestRoundTripAllKinds(t *testing.T) {
	r := New()
	sid := r.InsertStop("stop-a")
	d0, d1 := r.InsertRoutePair("route-a")
	tid := r.InsertTrip("trip-a")
	svc := r.InsertService("svc-a")

	gotStop, err := r.Stop("stop-a")
	require.NoError(t, err)
	assert.Equal(t, sid, gotStop)
	str, err := r.StopString(sid)
	require.NoError(t, err)
	assert.Equal(t, "stop-a", str)

	gotRoute0, err := r.Route("route-a", DirectionDefault)
	require.NoError(t, err)
	assert.Equal(t, d0, gotRoute0)
	gotRoute1, err := r.Route("route-a", DirectionOpposite)
	require.NoError(t, err)
	assert.Equal(t, d1, gotRoute1)
	assert.NotEqual(t, d0, d1)
	key, err := r.RouteKeyOf(d1)
	require.NoError(t, err)
	assert.Equal(t, RouteKey{GTFSRouteID: "route-a", Direction: DirectionOpposite}, key)

	gotTrip, err := r.Trip("trip-a")
	require.NoError(t, err)
	assert.Equal(t, tid, gotTrip)

	gotSvc, err := r.Service("svc-a")
	require.NoError(t, err)
	assert.Equal(t, svc, gotSvc)
}

func TestUnknownIDCarriesOffendingString(t *testing.T) {
	r := New()
	_, err := r.Stop("does-not-exist")
	require.Error(t, err)
	var uerr *UnknownIDError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "does-not-exist", uerr.ID)
	assert.Equal(t, "stop", uerr.Kind)
}

func TestLockFreezesRegistry(t *testing.T) {
	r := New()
	r.InsertStop("S1")
	r.Lock()
	assert.True(t, r.Locked())

	id := r.InsertStop("S2")
	assert.Equal(t, NoStop, id)
	assert.Equal(t, 1, r.StopCount())

	// Previously-registered ids are still resolvable after lock.
	got, err := r.Stop("S1")
	require.NoError(t, err)
	assert.NotEqual(t, NoStop, got)
}

func TestRouteCountCountsBothDirections(t *testing.T) {
	r := New()
	r.InsertRoutePair("route-a")
	r.InsertRoutePair("route-b")
	assert.Equal(t, 4, r.RouteCount())
}
