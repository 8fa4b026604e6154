package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	The runtime surface a node consumes from its host.
 *
 * Description:	The protocol core never talks to an operating system.
 *		Everything it needs - a physical send primitive, carrier
 *		sense, cancellable one-shot timers, a CRC-32 primitive,
 *		its own position, random numbers, a monotonic microsecond
 *		clock - comes through host_t.  The in-process simulator
 *		(sim.go) implements it; tests substitute a scripted fake.
 *
 *		Inbound events travel the other way: the host invokes the
 *		node's handlers (node.go) for physical-ready, collision,
 *		application-ready and timer expiry.  Handlers run to
 *		completion; there is no suspension point inside one.
 *
 *------------------------------------------------------------------*/

// timer_tag selects which handler a timer expiry is dispatched to.
// Eight generic tags, as the host timer service provides.
type timer_tag int

const (
	EV_TIMER1 timer_tag = iota + 1 /* link: handshake step bound */
	EV_TIMER2                      /* link: media timer */
	EV_TIMER3
	EV_TIMER4
	EV_TIMER5
	EV_TIMER6
	EV_TIMER7 /* oracle: beacon interval */
	EV_TIMER8 /* application: talk timer */
)

// timer_id names one scheduled timer so it can be cancelled.
// NO_TIMER is never returned by start_timer.
type timer_id int64

const NO_TIMER timer_id = 0

// host_t is the set of primitives the stack consumes.
//
// A timer cancelled with stop_timer must be considered never-to-fire;
// the stack does not defend against stale expiries.
type host_t interface {

	/* Enqueue an encoded frame on the wireless link. */
	write_physical(frame []byte) error

	/* True while another station's transmission is audible. */
	carrier_sense() bool

	/* One-shot timer bound to an event tag.  data is returned to the
	   handler on expiry. */
	start_timer(tag timer_tag, delay_usec int64, data int64) timer_id
	stop_timer(id timer_id)

	crc32(data []byte) uint32

	/* This node's current position, quantised to map units. */
	get_position() position_t

	rand() int64

	/* Monotonic simulation clock, microseconds. */
	time_in_usec() int64

	/* Wall-clock seconds in the local observer's frame.  Only ever
	   compared against other timestamps from the same observer. */
	time_of_day_sec() uint32

	node_address() node_addr

	/* Deliver a fully reassembled message to the application. */
	write_application(data []byte, sender node_addr)
}
