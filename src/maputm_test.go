package dtn

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func test_map_ref() map_ref_t {
	return map_ref_t{
		zone:            30,
		origin_easting:  500000,
		origin_northing: 4000000,
	}
}

func TestMapRefRoundTrip(t *testing.T) {
	var ref = test_map_ref()

	for _, pos := range []position_t{
		{x: 0, y: 0},
		{x: 1000, y: 2000},
		{x: 999, y: 1},
	} {
		var lat, lon, toErr = ref.to_latlng(pos)
		require.NoError(t, toErr)

		var back, fromErr = ref.from_latlng(lat, lon)
		require.NoError(t, fromErr)

		assert.InDelta(t, pos.x, back.x, 1, "easting drifted")
		assert.InDelta(t, pos.y, back.y, 1, "northing drifted")
	}
}

func TestMapRefSouthernHemisphere(t *testing.T) {
	var ref = map_ref_t{
		zone:            56,
		south:           true,
		origin_easting:  500000,
		origin_northing: 6000000,
	}

	var lat, _, err = ref.to_latlng(position_t{x: 0, y: 0})
	require.NoError(t, err)
	assert.Negative(t, lat)
}

func TestTrack2GPX(t *testing.T) {
	var in = strings.TrimSpace(`
sent,1,2,0,1000000
track,1,1000000,0,0
track,1,2000000,100,100
track,2,1000000,500,500
received,2,1,0,9000000
`)

	var out bytes.Buffer
	var err = Track2GPX(strings.NewReader(in), &out, MapRef{
		Zone:           30,
		OriginEasting:  500000,
		OriginNorthing: 4000000,
	})
	require.NoError(t, err)

	var gpx = out.String()
	assert.Contains(t, gpx, "<gpx")
	assert.Contains(t, gpx, "<trk>")
	assert.Contains(t, gpx, "node-1")
	assert.Contains(t, gpx, "node-2")
	assert.Equal(t, 3, strings.Count(gpx, "<trkpt"), "one point per track record, nothing for the delivery rows")
}
