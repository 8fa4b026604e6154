package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Random-waypoint mobility over a bounded map.
 *
 * Description:	Each walker picks a point on the map, walks toward it
 *		at constant speed, pauses, and picks another.  Continuous
 *		position is held as an r2 vector and quantised to map
 *		units for the wire and the medium.
 *
 *		Paths are a pure function of the walker's RNG, so runs
 *		reproduce exactly under the same scenario seed.
 *
 *------------------------------------------------------------------*/

import (
	"math/rand"

	"github.com/golang/geo/r2"
)

/* How often a walking node's position is resampled, microseconds. */
const walk_tick_usec = 100000

type walker_t struct {
	rng *rand.Rand

	width, height float64 /* map size, units */
	speed         float64 /* units per second */
	pause_usec    int64   /* rest at each waypoint */

	pos         r2.Point
	dest        r2.Point
	pause_until int64
	last        int64 /* time of the previous advance */
}

func new_walker(rng *rand.Rand, width float64, height float64, speed float64, pause_usec int64, start r2.Point) *walker_t {
	var w = &walker_t{
		rng:        rng,
		width:      width,
		height:     height,
		speed:      speed,
		pause_usec: pause_usec,
		pos:        start,
	}
	w.dest = w.pick_waypoint()
	return w
}

func (w *walker_t) pick_waypoint() r2.Point {
	return r2.Point{
		X: w.rng.Float64() * w.width,
		Y: w.rng.Float64() * w.height,
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	advance
 *
 * Purpose:	Move the walker up to time now and return the quantised
 *		position.
 *
 *--------------------------------------------------------------------*/

func (w *walker_t) advance(now int64) position_t {
	var dt = now - w.last
	w.last = now

	if now < w.pause_until {
		return w.quantised()
	}

	var remaining = w.dest.Sub(w.pos)
	var step = w.speed * float64(dt) / 1000000

	if remaining.Norm() <= step {
		/* Waypoint reached: rest, then head somewhere new. */
		w.pos = w.dest
		w.dest = w.pick_waypoint()
		w.pause_until = now + w.pause_usec
		return w.quantised()
	}

	w.pos = w.pos.Add(remaining.Normalize().Mul(step))
	return w.quantised()
}

func (w *walker_t) quantised() position_t {
	return position_t{
		x: int32(w.pos.X),
		y: int32(w.pos.Y),
	}
}
