package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Minimal discrete-event simulation harness.
 *
 * Description:	The protocol core is written against host_t; this file
 *		provides the in-process host used by cmd/mule and the
 *		scenario tests.  A single virtual microsecond clock, a
 *		binary-heap event queue, and one sim_node_t per node
 *		implementing the host primitives.
 *
 *		Determinism: every node gets its own RNG seeded from
 *		the scenario seed and its address, and ties in the event
 *		queue break on insertion order, so a run is a pure
 *		function of the scenario.
 *
 *		Cancelled timers are dropped before dispatch - a
 *		stopped timer never fires, which the stack relies on.
 *
 *------------------------------------------------------------------*/

import (
	"container/heap"
	"hash/crc32"
	"math/rand"
	"os"

	"github.com/charmbracelet/log"
)

type sim_event_t struct {
	at        int64
	seq       int64 /* tie-break: insertion order */
	fn        func()
	cancelled bool
}

type event_heap_t []*sim_event_t

func (h event_heap_t) Len() int { return len(h) }
func (h event_heap_t) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h event_heap_t) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *event_heap_t) Push(x any) {
	*h = append(*h, x.(*sim_event_t))
}

func (h *event_heap_t) Pop() any {
	var old = *h
	var n = len(old)
	var ev = old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}

type sim_t struct {
	log *log.Logger

	now      int64
	events   event_heap_t
	next_seq int64

	seed   int64
	nodes  []*sim_node_t
	medium *medium_t
}

func new_sim(seed int64, radio radio_config_t) *sim_t {
	var s = &sim_t{
		log: log.NewWithOptions(os.Stderr, log.Options{
			Level:  log.WarnLevel,
			Prefix: "sim",
		}),
		seed: seed,
	}
	s.medium = new_medium(s, radio)
	return s
}

func (s *sim_t) schedule(at int64, fn func()) *sim_event_t {
	if at < s.now {
		at = s.now
	}
	var ev = &sim_event_t{at: at, seq: s.next_seq, fn: fn}
	s.next_seq++
	heap.Push(&s.events, ev)
	return ev
}

func (s *sim_t) after(delay int64, fn func()) *sim_event_t {
	return s.schedule(s.now+delay, fn)
}

/*-------------------------------------------------------------------
 *
 * Name:	run_until
 *
 * Purpose:	Dispatch events in timestamp order up to and including
 *		deadline.
 *
 *--------------------------------------------------------------------*/

func (s *sim_t) run_until(deadline int64) {
	for len(s.events) > 0 && s.events[0].at <= deadline {
		var ev = heap.Pop(&s.events).(*sim_event_t)
		if ev.cancelled {
			continue
		}
		s.now = ev.at
		ev.fn()
	}
	if s.now < deadline {
		s.now = deadline
	}
}

/* One application delivery, for statistics and assertions. */
type app_delivery_t struct {
	data   []byte
	sender node_addr
	at     int64
}

// sim_node_t implements host_t for one simulated node.
type sim_node_t struct {
	sim  *sim_t
	addr node_addr
	rng  *rand.Rand

	node   *node_t
	walker *walker_t /* nil for a stationary node */
	pos    position_t

	next_timer timer_id
	timers     map[timer_id]*sim_event_t

	transmitting bool /* radio is mid-transmission */

	deliveries []app_delivery_t
	dlog       *dtn_log_t /* optional delivery/track log */
}

/*-------------------------------------------------------------------
 *
 * Name:	add_node
 *
 * Purpose:	Create a node at pos and bring up its stack.
 *
 *--------------------------------------------------------------------*/

func (s *sim_t) add_node(addr node_addr, pos position_t, app application_t, cfg node_config_t) *sim_node_t {
	var sn = &sim_node_t{
		sim:        s,
		addr:       addr,
		rng:        rand.New(rand.NewSource(s.seed + int64(addr))),
		pos:        pos,
		next_timer: 1,
		timers:     make(map[timer_id]*sim_event_t),
	}
	s.nodes = append(s.nodes, sn)

	sn.node = node_init(sn, app, cfg)

	return sn
}

/* Attach a random-waypoint walker and start it ticking. */
func (sn *sim_node_t) start_walking(w *walker_t) {
	sn.walker = w
	sn.walk_tick()
}

func (sn *sim_node_t) walk_tick() {
	sn.pos = sn.walker.advance(sn.sim.now)
	sn.sim.after(walk_tick_usec, sn.walk_tick)
}

/*
 * host_t implementation.
 */

func (sn *sim_node_t) write_physical(frame []byte) error {
	return sn.sim.medium.transmit(sn, frame)
}

func (sn *sim_node_t) carrier_sense() bool {
	return sn.sim.medium.busy_at(sn)
}

func (sn *sim_node_t) start_timer(tag timer_tag, delay_usec int64, data int64) timer_id {
	if delay_usec < 1 {
		delay_usec = 1
	}

	var id = sn.next_timer
	sn.next_timer++

	var ev = sn.sim.after(delay_usec, func() {
		delete(sn.timers, id)
		sn.node.timer_expired(tag, data)
	})
	sn.timers[id] = ev

	return id
}

func (sn *sim_node_t) stop_timer(id timer_id) {
	if ev, ok := sn.timers[id]; ok {
		ev.cancelled = true
		delete(sn.timers, id)
	}
}

func (sn *sim_node_t) crc32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

func (sn *sim_node_t) get_position() position_t {
	return sn.pos
}

func (sn *sim_node_t) rand() int64 {
	return sn.rng.Int63()
}

func (sn *sim_node_t) time_in_usec() int64 {
	return sn.sim.now
}

func (sn *sim_node_t) time_of_day_sec() uint32 {
	return uint32(sn.sim.now / 1000000)
}

func (sn *sim_node_t) node_address() node_addr {
	return sn.addr
}

func (sn *sim_node_t) write_application(data []byte, sender node_addr) {
	sn.deliveries = append(sn.deliveries, app_delivery_t{
		data:   append([]byte(nil), data...),
		sender: sender,
		at:     sn.sim.now,
	})
}
