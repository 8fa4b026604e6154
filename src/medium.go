package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Simulated shared wireless medium.
 *
 * Description:	Disc propagation: a transmission is audible to every
 *		node within range_units of the transmitter, and to
 *		nobody else.  A frame occupies the channel for its
 *		airtime (length over bandwidth) and arrives a
 *		propagation delay after the transmitter finishes.
 *
 *		Two transmissions whose transmitters can hear each other
 *		collide outright: both frames die and both senders get a
 *		collision event.  Transmitters that cannot hear each
 *		other can still overlap at a common receiver - the
 *		hidden-terminal case - where the receiver hears garbage
 *		and gets the collision event instead.  That is the case
 *		the link layer's RTS/CTS handshake exists to soften.
 *
 *		A node mid-transmission hears nothing (half-duplex).
 *
 *------------------------------------------------------------------*/

import "fmt"

type radio_config_t struct {
	range_units      int32 /* disc radius, map units */
	bandwidth_bps    int64
	propagation_usec int64
}

func default_radio_config() radio_config_t {
	return radio_config_t{
		range_units:      150,
		bandwidth_bps:    2000000,
		propagation_usec: 500,
	}
}

type transmission_t struct {
	src   *sim_node_t
	start int64
	end   int64 /* start + airtime */
	frame []byte

	collided bool /* killed by a transmitter-range collision */
	reported bool /* sender already got its collision event */
}

type medium_t struct {
	sim    *sim_t
	cfg    radio_config_t
	active []*transmission_t
}

func new_medium(sim *sim_t, cfg radio_config_t) *medium_t {
	return &medium_t{sim: sim, cfg: cfg}
}

func (m *medium_t) in_range(a position_t, b position_t) bool {
	var dx = int64(a.x - b.x)
	var dy = int64(a.y - b.y)
	var r = int64(m.cfg.range_units)
	return dx*dx+dy*dy <= r*r
}

func (m *medium_t) airtime_usec(nbytes int) int64 {
	return int64(nbytes) * 8 * 1000000 / m.cfg.bandwidth_bps
}

func overlap(a *transmission_t, b *transmission_t) bool {
	return a.start < b.end && b.start < a.end
}

/*-------------------------------------------------------------------
 *
 * Name:	transmit
 *
 * Purpose:	Put one frame on the air.
 *
 *--------------------------------------------------------------------*/

func (m *medium_t) transmit(src *sim_node_t, frame []byte) error {
	if len(frame) > MAX_FRAME_SIZE {
		return fmt.Errorf("frame of %d bytes exceeds the radio MTU %d", len(frame), MAX_FRAME_SIZE)
	}

	var now = m.sim.now
	var t = &transmission_t{
		src:   src,
		start: now,
		end:   now + m.airtime_usec(len(frame)),
		frame: append([]byte(nil), frame...),
	}

	m.prune(now)

	/* Mutual-range collisions with anything still on the air. */
	for _, other := range m.active {
		if other.end <= now {
			continue
		}
		if m.in_range(other.src.pos, src.pos) {
			t.collided = true
			other.collided = true
			m.report_collision(t)
			m.report_collision(other)
		}
	}

	m.active = append(m.active, t)

	src.transmitting = true
	m.sim.schedule(t.end, func() {
		src.transmitting = false
	})

	/* Arrange arrival at every node inside the disc.  Reception is
	   judged at arrival time so a later overlapping transmission can
	   still spoil it. */
	for _, r := range m.sim.nodes {
		if r == src {
			continue
		}
		if !m.in_range(src.pos, r.pos) {
			continue
		}
		var rcv = r
		m.sim.schedule(t.end+m.cfg.propagation_usec, func() {
			m.arrive(rcv, t)
		})
	}

	return nil
}

func (m *medium_t) report_collision(t *transmission_t) {
	if t.reported {
		return
	}
	t.reported = true
	var sender = t.src
	m.sim.after(1, sender.node.frame_collision)
}

/*-------------------------------------------------------------------
 *
 * Name:	arrive
 *
 * Purpose:	Complete (or spoil) one reception.
 *
 *--------------------------------------------------------------------*/

func (m *medium_t) arrive(r *sim_node_t, t *transmission_t) {
	if r.transmitting {
		return /* deaf while talking */
	}

	if t.collided {
		r.node.frame_collision()
		return
	}

	/* Hidden terminal: someone the transmitter couldn't hear was on
	   the air at the same time, and we are in range of both. */
	for _, u := range m.active {
		if u == t || !overlap(u, t) {
			continue
		}
		if u.src != r && m.in_range(u.src.pos, r.pos) {
			r.node.frame_collision()
			return
		}
	}

	r.node.physical_ready(append([]byte(nil), t.frame...))
}

func (m *medium_t) busy_at(n *sim_node_t) bool {
	var now = m.sim.now
	for _, t := range m.active {
		if t.src == n {
			continue
		}
		if t.start <= now && now < t.end+m.cfg.propagation_usec &&
			m.in_range(t.src.pos, n.pos) {
			return true
		}
	}
	return false
}

/* Forget transmissions old enough that no pending arrival can still
   consult them.  Keeps the active list bounded over a long run. */
func (m *medium_t) prune(now int64) {
	var horizon = m.airtime_usec(MAX_FRAME_SIZE) + 2*m.cfg.propagation_usec
	var keep = m.active[:0]
	for _, t := range m.active {
		if t.end+horizon >= now {
			keep = append(keep, t)
		}
	}
	m.active = keep
}
