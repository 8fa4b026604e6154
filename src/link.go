package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Link layer - CSMA/CA medium access with RTS/CTS/DATA/ACK.
 *
 * Description:	One frame in the air at a time, never while another
 *		station is audibly transmitting.  Unicast DATA goes
 *		through a four-step handshake so the hidden-terminal
 *		cases the simulated radio produces degrade gracefully:
 *
 *		  sender            receiver
 *		  RTS     ------->
 *		          <-------  CTS
 *		  DATA    ------->
 *		          <-------  ACK
 *
 *		Two timers drive everything.  The media timer
 *		periodically attempts to transmit - slowly when there is
 *		nothing to send, quickly when there is.  The handshake
 *		timer bounds each step; after MAX_HANDSHAKE_FAILS
 *		expiries the head frame is given up on.  Collisions
 *		reschedule the media timer with binary exponential
 *		backoff.
 *
 *		Beacons are different: broadcast, no handshake, and a
 *		single pending slot rather than a queue.  A newer beacon
 *		overwrites an unsent one - stale topology is worse than
 *		lost topology.
 *
 *------------------------------------------------------------------*/

import (
	"github.com/charmbracelet/log"
)

type link_state int

const (
	LINK_IDLE      link_state = iota
	LINK_RTS_SENT             /* our RTS is out, awaiting CTS */
	LINK_CTS_SENT             /* our CTS is out, awaiting DATA */
	LINK_AWAIT_ACK            /* our DATA is out, awaiting ACK */
)

/* Backoff exponent cap.  2^10 slots of 1 ms is already a second. */
const max_backoff = 10

type link_config_t struct {
	bandwidth_bps    int64
	propagation_usec int64
}

type link_t struct {
	node *node_t
	log  *log.Logger
	cfg  link_config_t

	queue []frame_t /* outbound DATA, FIFO */

	/* At most one beacon waits here.  send_info overwrites it. */
	pending_beacon      []byte
	pending_beacon_dest node_addr

	state   link_state
	fails   int /* handshake expiries charged to the head frame */
	backoff int

	media_timer     timer_id
	handshake_timer timer_id
}

func link_init(node *node_t, cfg link_config_t) *link_t {
	var lk = &link_t{
		node: node,
		log:  node.log.WithPrefix("link"),
		cfg:  cfg,
	}

	lk.reschedule_media()

	return lk
}

/* Transmission time of a frame of this payload length, microseconds. */
func (lk *link_t) airtime_usec(payload_len int) int64 {
	return int64(FRAME_HEADER_SIZE+payload_len) * 8 * 1000000 / lk.cfg.bandwidth_bps
}

/* Bound on one handshake step involving a DATA frame of this payload
   length: both directions of the exchange plus slack for turnaround. */
func (lk *link_t) waiting_time(payload_len int) int64 {
	return lk.airtime_usec(payload_len) + lk.airtime_usec(0) +
		2*lk.cfg.propagation_usec + 2*SLOT_TIME
}

/*-------------------------------------------------------------------
 *
 * Name:	send_data
 *
 * Purpose:	Enqueue a DATA frame for dest.  Non-blocking; oversized
 *		payloads are dropped silently.
 *
 *--------------------------------------------------------------------*/

func (lk *link_t) send_data(payload []byte, dest node_addr) {
	if len(payload) > MAX_PACKET_SIZE {
		lk.log.Debug("dropping oversized data", "len", len(payload), "dest", dest)
		return
	}

	lk.queue = append(lk.queue, frame_t{
		kind:    DL_DATA,
		dest:    dest,
		src:     lk.node.host.node_address(),
		payload: append([]byte(nil), payload...),
	})
}

/*-------------------------------------------------------------------
 *
 * Name:	send_info
 *
 * Purpose:	Arm the beacon slot.  An unsent earlier beacon is
 *		overwritten.
 *
 *--------------------------------------------------------------------*/

func (lk *link_t) send_info(payload []byte, dest node_addr) {
	if len(payload) > MAX_PACKET_SIZE {
		lk.log.Debug("dropping oversized info", "len", len(payload))
		return
	}

	lk.pending_beacon = append([]byte(nil), payload...)
	lk.pending_beacon_dest = dest
}

func (lk *link_t) send_frame(kind frame_kind, dest node_addr, payload []byte) {
	var buf, err = frame_encode(frame_t{
		kind:    kind,
		dest:    dest,
		src:     lk.node.host.node_address(),
		payload: payload,
	}, lk.node.host.crc32)
	if err != nil {
		lk.log.Error("frame encode failed", "kind", kind, "err", err)
		return
	}

	if werr := lk.node.host.write_physical(buf); werr != nil {
		lk.log.Debug("physical write failed", "kind", kind, "err", werr)
	}
}

/* True while a DATA handshake we initiated is in progress. */
func (lk *link_t) sending_data() bool {
	return lk.state == LINK_RTS_SENT || lk.state == LINK_AWAIT_ACK
}

func (lk *link_t) work_pending() bool {
	return lk.pending_beacon != nil || len(lk.queue) > 0
}

func (lk *link_t) reschedule_media() {
	if lk.media_timer != NO_TIMER {
		lk.node.host.stop_timer(lk.media_timer)
	}

	var base int64 = IDLE_FREQ
	if lk.work_pending() {
		base = ACTIVE_FREQ
	}
	var delay = 1 + lk.node.host.rand()%base
	lk.media_timer = lk.node.host.start_timer(EV_TIMER2, delay, 0)
}

func (lk *link_t) start_handshake_timer(payload_len int) {
	if lk.handshake_timer != NO_TIMER {
		lk.node.host.stop_timer(lk.handshake_timer)
	}
	lk.handshake_timer = lk.node.host.start_timer(EV_TIMER1, lk.waiting_time(payload_len), 0)
}

func (lk *link_t) stop_handshake_timer() {
	if lk.handshake_timer != NO_TIMER {
		lk.node.host.stop_timer(lk.handshake_timer)
		lk.handshake_timer = NO_TIMER
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	media_timer_expired
 *
 * Purpose:	Periodic attempt to transmit.
 *
 * Description:	A busy carrier resets the backoff and tries again at
 *		the active rate.  Otherwise an armed beacon goes out
 *		immediately (broadcast, no handshake); failing that, if
 *		no handshake is in flight and data is queued, open one
 *		with an RTS for the head frame.
 *
 *--------------------------------------------------------------------*/

func (lk *link_t) media_timer_expired() {
	lk.media_timer = NO_TIMER

	if lk.node.host.carrier_sense() {
		lk.backoff = 0
		lk.media_timer = lk.node.host.start_timer(EV_TIMER2,
			1+lk.node.host.rand()%ACTIVE_FREQ, 0)
		return
	}

	if lk.pending_beacon != nil {
		var b = lk.pending_beacon
		lk.pending_beacon = nil
		lk.send_frame(DL_BEACON, lk.pending_beacon_dest, b)
	} else if !lk.sending_data() && len(lk.queue) > 0 {
		var head = lk.queue[0]
		lk.state = LINK_RTS_SENT
		lk.start_handshake_timer(len(head.payload))
		lk.send_frame(DL_RTS, head.dest, nil)
	}

	lk.reschedule_media()
}

/*-------------------------------------------------------------------
 *
 * Name:	handshake_timer_expired
 *
 * Purpose:	A handshake step took too long.
 *
 * Description:	Charge a failure to the head frame; on the third, drop
 *		it and move on.  Either way the handshake is abandoned
 *		and the media timer takes over again.
 *
 *--------------------------------------------------------------------*/

func (lk *link_t) handshake_timer_expired() {
	lk.handshake_timer = NO_TIMER

	lk.fails++
	if lk.fails >= MAX_HANDSHAKE_FAILS {
		lk.fails = 0
		if len(lk.queue) > 0 {
			var head = lk.queue[0]
			lk.queue = lk.queue[1:]
			lk.log.Debug("dropping undeliverable frame", "dest", head.dest, "len", len(head.payload))
		}
	}

	lk.state = LINK_IDLE
	lk.reschedule_media()
}

/*-------------------------------------------------------------------
 *
 * Name:	collision_event
 *
 * Purpose:	The physical layer reported our transmission collided.
 *
 * Description:	Binary exponential backoff: hold the media timer for
 *		SLOT_TIME * uniform(0, 2^backoff) and widen the window
 *		for next time.
 *
 *--------------------------------------------------------------------*/

func (lk *link_t) collision_event() {
	if lk.media_timer != NO_TIMER {
		lk.node.host.stop_timer(lk.media_timer)
	}

	var window = int64(1) << lk.backoff
	var delay = SLOT_TIME * (lk.node.host.rand() % window)
	if delay < 1 {
		delay = 1
	}
	lk.media_timer = lk.node.host.start_timer(EV_TIMER2, delay, 0)

	if lk.backoff < max_backoff {
		lk.backoff++
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	physical_ready
 *
 * Purpose:	Process one received transmission.
 *
 * Description:	Frames failing the checksum are dropped without
 *		comment.  Beacons go up to the oracle regardless of
 *		addressing (they are broadcast); everything else only
 *		matters when addressed to this node.
 *
 *--------------------------------------------------------------------*/

func (lk *link_t) physical_ready(buf []byte) {
	var self = lk.node.host.node_address()

	var f, err = frame_decode(buf, lk.node.host.crc32)
	if err != nil {
		lk.log.Debug("dropping frame", "err", err)
		return
	}
	if f.src == self {
		return
	}

	switch f.kind {

	case DL_BEACON:
		lk.node.oracle.ingest(f.payload, f.src)

	case DL_RTS:
		if f.dest != self {
			return
		}
		lk.send_frame(DL_CTS, f.src, nil)
		lk.state = LINK_CTS_SENT
		lk.start_handshake_timer(MAX_PACKET_SIZE)

	case DL_CTS:
		if f.dest != self {
			return
		}
		lk.stop_handshake_timer()
		if lk.state != LINK_RTS_SENT || len(lk.queue) == 0 {
			/* Stale or duplicate CTS. */
			lk.state = LINK_IDLE
			return
		}
		var head = lk.queue[0]
		lk.queue = lk.queue[1:]
		lk.send_frame(DL_DATA, head.dest, head.payload)
		lk.state = LINK_AWAIT_ACK
		lk.start_handshake_timer(len(head.payload))

	case DL_DATA:
		if f.dest != self {
			return
		}
		lk.stop_handshake_timer()
		lk.state = LINK_IDLE
		lk.send_frame(DL_ACK, f.src, nil)
		lk.node.network.recv(f.payload, f.src)

	case DL_ACK:
		if f.dest != self {
			return
		}
		lk.stop_handshake_timer()
		lk.state = LINK_IDLE
		lk.fails = 0
		lk.reschedule_media()
	}
}
