package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	One node's protocol stack, glued together.
 *
 * Description:	All per-node state hangs off node_t so many nodes can
 *		coexist in one simulated world.  The host drives a node
 *		entirely through four entry points - physical_ready,
 *		frame_collision, application_ready and timer_expired -
 *		and each handler runs to completion before the next
 *		event is dispatched.
 *
 *		Layer bring-up order follows the protocol dependencies:
 *		link first (it owns the radio-facing timers), then
 *		transport and network, then the oracle (whose first
 *		beacon needs the network layer's buffer figure).
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// application_t is what the stack needs from whatever sits on top of
// it.  The synthetic traffic source (fakeapp.go) is the only
// implementation in this repo.
type application_t interface {

	/* The talk timer fired; produce traffic if so inclined. */
	talk_timer_expired(n *node_t)

	/* A fully reassembled message arrived. */
	message_received(n *node_t, msg []byte, sender node_addr)
}

type node_config_t struct {
	link link_config_t

	/* nil gets a stderr logger at warn level */
	logger *log.Logger
}

func default_link_config() link_config_t {
	return link_config_t{
		bandwidth_bps:    2000000,
		propagation_usec: 500,
	}
}

type node_t struct {
	host host_t
	log  *log.Logger

	link      *link_t
	network   *network_t
	oracle    *oracle_t
	transport *transport_t

	app application_t
}

/*-------------------------------------------------------------------
 *
 * Name:	node_init
 *
 * Purpose:	Bring up the whole stack for one node.
 *
 *--------------------------------------------------------------------*/

func node_init(host host_t, app application_t, cfg node_config_t) *node_t {
	var logger = cfg.logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			Level:  log.WarnLevel,
			Prefix: fmt.Sprintf("node-%d", host.node_address()),
		})
	}

	var n = &node_t{
		host: host,
		log:  logger,
		app:  app,
	}

	n.link = link_init(n, cfg.link)
	n.transport = transport_init(n)
	n.network = net_init(n)
	n.oracle = oracle_init(n)

	return n
}

/*
 * Host-facing entry points.  The host promises handlers are never
 * re-entered and that a stopped timer never fires.
 */

func (n *node_t) physical_ready(buf []byte) {
	n.link.physical_ready(buf)
}

func (n *node_t) frame_collision() {
	n.link.collision_event()
}

/* The application has a message ready to send. */
func (n *node_t) application_ready(msg []byte, dest node_addr) {
	n.transport.datagram(msg, dest)
}

func (n *node_t) timer_expired(tag timer_tag, data int64) {
	switch tag {
	case EV_TIMER1:
		n.link.handshake_timer_expired()
	case EV_TIMER2:
		n.link.media_timer_expired()
	case EV_TIMER7:
		n.oracle.beacon_timer_expired()
	case EV_TIMER8:
		if n.app != nil {
			n.app.talk_timer_expired(n)
		}
	default:
		n.log.Debug("expiry on unused timer tag", "tag", tag, "data", data)
	}
}

/* Hand a reassembled message to whoever is listening. */
func (n *node_t) deliver(msg []byte, sender node_addr) {
	n.host.write_application(msg, sender)
	if n.app != nil {
		n.app.message_received(n, msg, sender)
	}
}
