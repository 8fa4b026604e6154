package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Fake application layer.
 *
 * Description:	Pumps out messages of random data and random bounded
 *		length to random recipients on a timer, and records what
 *		was sent and what came back so a run can be scored for
 *		delivery ratio afterwards.
 *
 *		A message is a 4-byte little-endian id followed by
 *		filth.  Content is never checked here - the transport
 *		layer has already verified it.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"

	"github.com/charmbracelet/log"
)

type fakeapp_t struct {
	log *log.Logger

	peers     []node_addr /* candidate recipients */
	talk_usec int64
	max_len   int /* payload bound, including the id */

	next_id int32

	sent_count     int
	received_count int

	dlog *dtn_log_t /* nil is fine */
}

func fakeapp_init(peers []node_addr, talk_usec int64, max_len int, dlog *dtn_log_t) *fakeapp_t {
	if max_len < 4 {
		max_len = 4
	}
	return &fakeapp_t{
		log:       log.Default().WithPrefix("fakeapp"),
		peers:     peers,
		talk_usec: talk_usec,
		max_len:   max_len,
		dlog:      dlog,
	}
}

/* Arm the talk timer.  Jittered so a fleet of nodes created in the
   same instant doesn't talk in chorus. */
func (a *fakeapp_t) start(n *node_t) {
	var delay = 1 + n.host.rand()%a.talk_usec
	n.host.start_timer(EV_TIMER8, delay, 0)
}

func (a *fakeapp_t) pick_recipient(n *node_t) (node_addr, bool) {
	var self = n.host.node_address()
	/* A couple of retries beats filtering the slice every time. */
	for range 8 {
		var r = a.peers[int(n.host.rand())%len(a.peers)]
		if r != self {
			return r, true
		}
	}
	return 0, false
}

/*-------------------------------------------------------------------
 *
 * Name:	talk_timer_expired
 *
 * Purpose:	Generate one message and reschedule.
 *
 *--------------------------------------------------------------------*/

func (a *fakeapp_t) talk_timer_expired(n *node_t) {
	defer n.host.start_timer(EV_TIMER8, a.talk_usec, 0)

	var recipient, ok = a.pick_recipient(n)
	if !ok {
		return
	}

	var length = 4 + int(n.host.rand())%(a.max_len-3)
	var msg = make([]byte, length)
	binary.LittleEndian.PutUint32(msg, uint32(a.next_id))
	for i := 4; i < length; i++ {
		msg[i] = byte(n.host.rand())
	}

	if a.dlog != nil {
		a.dlog.log_sent(n.host.node_address(), a.next_id, recipient, n.host.time_in_usec())
	}
	a.sent_count++
	a.next_id++

	n.application_ready(msg, recipient)
}

func (a *fakeapp_t) message_received(n *node_t, msg []byte, sender node_addr) {
	if len(msg) < 4 {
		return
	}
	var id = int32(binary.LittleEndian.Uint32(msg))

	if a.dlog != nil {
		a.dlog.log_received(n.host.node_address(), id, sender, n.host.time_in_usec())
	}
	a.received_count++
}
