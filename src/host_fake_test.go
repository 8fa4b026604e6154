package dtn

/*
 * A scripted host for driving one node's layers deterministically.
 * Timers fire only when the test says so; transmissions are captured
 * for inspection instead of going anywhere.
 */

import (
	"hash/crc32"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type fake_timer_t struct {
	id   timer_id
	tag  timer_tag
	at   int64
	data int64
}

type fake_host_t struct {
	t *testing.T

	addr node_addr
	pos  position_t
	now  int64
	rng  *rand.Rand

	carrier bool

	node *node_t

	writes []frame_t /* decoded transmissions, in order */

	next_id timer_id
	timers  []*fake_timer_t

	deliveries []app_delivery_t
}

func new_fake_host(t *testing.T, addr node_addr, pos position_t) *fake_host_t {
	return &fake_host_t{
		t:    t,
		addr: addr,
		pos:  pos,
		/* Some way into the run, so "never heard directly" and
		   "heard at time zero" can't be confused. */
		now:     1000000,
		rng:     rand.New(rand.NewSource(42 + int64(addr))),
		next_id: 1,
	}
}

/* Build a node on a fake host with quiet defaults. */
func new_test_node(t *testing.T, addr node_addr, pos position_t) (*node_t, *fake_host_t) {
	var h = new_fake_host(t, addr, pos)
	var n = node_init(h, nil, node_config_t{link: default_link_config()})
	h.node = n
	return n, h
}

func (h *fake_host_t) write_physical(frame []byte) error {
	var f, err = frame_decode(frame, h.crc32)
	require.NoError(h.t, err, "node emitted an undecodable frame")
	h.writes = append(h.writes, f)
	return nil
}

func (h *fake_host_t) carrier_sense() bool {
	return h.carrier
}

func (h *fake_host_t) start_timer(tag timer_tag, delay_usec int64, data int64) timer_id {
	if delay_usec < 1 {
		delay_usec = 1
	}
	var ft = &fake_timer_t{
		id:   h.next_id,
		tag:  tag,
		at:   h.now + delay_usec,
		data: data,
	}
	h.next_id++
	h.timers = append(h.timers, ft)
	return ft.id
}

func (h *fake_host_t) stop_timer(id timer_id) {
	for i, ft := range h.timers {
		if ft.id == id {
			h.timers = append(h.timers[:i], h.timers[i+1:]...)
			return
		}
	}
}

func (h *fake_host_t) crc32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

func (h *fake_host_t) get_position() position_t {
	return h.pos
}

func (h *fake_host_t) rand() int64 {
	return h.rng.Int63()
}

func (h *fake_host_t) time_in_usec() int64 {
	return h.now
}

func (h *fake_host_t) time_of_day_sec() uint32 {
	return uint32(h.now / 1000000)
}

func (h *fake_host_t) node_address() node_addr {
	return h.addr
}

func (h *fake_host_t) write_application(data []byte, sender node_addr) {
	h.deliveries = append(h.deliveries, app_delivery_t{
		data:   append([]byte(nil), data...),
		sender: sender,
		at:     h.now,
	})
}

/*
 * Test controls.
 */

/* Fire the earliest pending timer with this tag, advancing the clock
   to its deadline.  Fails the test if none is pending. */
func (h *fake_host_t) fire(tag timer_tag) {
	var best *fake_timer_t
	for _, ft := range h.timers {
		if ft.tag != tag {
			continue
		}
		if best == nil || ft.at < best.at {
			best = ft
		}
	}
	require.NotNilf(h.t, best, "no pending timer with tag %d", tag)

	if best.at > h.now {
		h.now = best.at
	}
	h.stop_timer(best.id)
	h.node.timer_expired(best.tag, best.data)
}

func (h *fake_host_t) pending(tag timer_tag) int {
	var n = 0
	for _, ft := range h.timers {
		if ft.tag == tag {
			n++
		}
	}
	return n
}

/* Next scheduled deadline for a tag, or -1. */
func (h *fake_host_t) deadline(tag timer_tag) int64 {
	var at int64 = -1
	for _, ft := range h.timers {
		if ft.tag == tag && (at == -1 || ft.at < at) {
			at = ft.at
		}
	}
	return at
}

/* Hand the node a frame as if it had just arrived off the air. */
func (h *fake_host_t) deliver_frame(f frame_t) {
	var buf, err = frame_encode(f, h.crc32)
	require.NoError(h.t, err)
	h.node.physical_ready(buf)
}

/* Frames written since the last call, newest last. */
func (h *fake_host_t) take_writes() []frame_t {
	var w = h.writes
	h.writes = nil
	return w
}
