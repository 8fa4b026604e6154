package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Map units to geodetic coordinates.
 *
 * Description:	Map positions are metres of easting/northing within a
 *		configured UTM zone.  With an anchor for the map's
 *		origin, any node position converts to latitude and
 *		longitude - which is all a GPX track wants.
 *
 *------------------------------------------------------------------*/

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/tzneal/coordconv"
)

// map_ref_t anchors the abstract map in the real world.
type map_ref_t struct {
	zone  int  /* UTM zone 1..60 */
	south bool /* southern hemisphere */

	/* UTM coordinates of the map origin, metres. */
	origin_easting  float64
	origin_northing float64
}

func (m map_ref_t) hemisphere() coordconv.Hemisphere {
	if m.south {
		return coordconv.HemisphereSouth
	}
	return coordconv.HemisphereNorth
}

/*-------------------------------------------------------------------
 *
 * Name:	to_latlng
 *
 * Purpose:	Convert one map position to geodetic degrees.
 *
 *--------------------------------------------------------------------*/

func (m map_ref_t) to_latlng(pos position_t) (lat float64, lon float64, err error) {
	var utm = coordconv.UTMCoord{
		Zone:       m.zone,
		Hemisphere: m.hemisphere(),
		Easting:    m.origin_easting + float64(pos.x),
		Northing:   m.origin_northing + float64(pos.y),
	}

	var latlng, convErr = coordconv.DefaultUTMConverter.ConvertToGeodetic(utm)
	if convErr != nil {
		return 0, 0, convErr
	}

	return r2d(float64(latlng.Lat)), r2d(float64(latlng.Lng)), nil
}

func (m map_ref_t) from_latlng(lat float64, lon float64) (position_t, error) {
	var latlng = s2.LatLng{
		Lat: s1.Angle(d2r(lat)),
		Lng: s1.Angle(d2r(lon)),
	}

	var utm, convErr = coordconv.DefaultUTMConverter.ConvertFromGeodetic(latlng, 0)
	if convErr != nil {
		return position_t{}, convErr
	}

	return position_t{
		x: int32(utm.Easting - m.origin_easting),
		y: int32(utm.Northing - m.origin_northing),
	}, nil
}

func r2d(radians float64) float64 {
	return radians * 180 / math.Pi
}

func d2r(degrees float64) float64 {
	return degrees * math.Pi / 180
}
