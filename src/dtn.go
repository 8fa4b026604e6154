// Package dtn is the protocol core of a delay-tolerant network node for
// a mobile wireless mesh under a discrete-event simulator.
//
// The stack has four layers.  The link layer arbitrates the shared
// wireless medium with CSMA/CA, an RTS/CTS/DATA/ACK handshake and
// binary exponential backoff.  The network layer routes packets
// opportunistically, buffering those with no suitable next hop.  The
// oracle maintains a geographic topology estimate from periodic beacons
// and ranks candidate next hops.  The transport layer fragments,
// checksums and reassembles application datagrams.
//
// The simulator itself (event loop, medium, mobility) is a collaborator
// consumed through the host_t interface; a minimal in-process harness
// lives in sim.go / medium.go so scenarios are runnable and testable.
package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Shared constants and primitive types for the DTN stack.
 *
 * Description:	Sizes are all derived from the wireless MTU so that any
 *		fully laden datagram still fits in one frame:
 *
 *		MAX_FRAME_SIZE
 *		  - frame header    -> MAX_PACKET_SIZE
 *		  - packet header   -> MAX_DATAGRAM_SIZE
 *		  - datagram header -> MAX_FRAGMENT_SIZE
 *
 *------------------------------------------------------------------*/

/*
 * Oracle timing.  A neighbour is "live" while its most recent direct
 * beacon is no older than ORACLE_WAIT.
 */
const ORACLE_INTERVAL = 3000000 /* beacon interval, microseconds */
const ORACLE_WAIT = ORACLE_INTERVAL * 2

/*
 * A candidate next hop must leave the squared distance to the
 * destination more than MINDIST^2 below our own.  Breaks ties so packets
 * don't oscillate between equidistant nodes.
 */
const MINDIST = 2

/*
 * Wireless MTU.  802.11 frame body size, which is what the simulated
 * radio will accept in one write.
 */
const MAX_FRAME_SIZE = 2312

/* u8 kind + i32 dest + i32 src + u64 len + u32 crc */
const FRAME_HEADER_SIZE = 1 + 4 + 4 + 8 + 4

const MAX_PACKET_SIZE = MAX_FRAME_SIZE - FRAME_HEADER_SIZE

/* i32 source + i32 dest + i32 len */
const PACKET_HEADER_SIZE = 4 + 4 + 4

const MAX_DATAGRAM_SIZE = MAX_PACKET_SIZE - PACKET_HEADER_SIZE

/* u32 crc + u32 msg_size + i32 source + i32 msg_num + i32 frag_num + i32 frag_count */
const DATAGRAM_HEADER_SIZE = 4 + 4 + 4 + 4 + 4 + 4

const MAX_FRAGMENT_SIZE = MAX_DATAGRAM_SIZE - DATAGRAM_HEADER_SIZE

/*
 * Store-and-forward budgets, in accounted bytes.
 */
const NETWORK_BUFF_SIZE = 1000000
const TRANSPORT_BUFF_SIZE = 1000000

/*
 * Media timer base rates, microseconds.  The actual interval is
 * 1 + rand%base so that stations which booted together don't stay
 * in lockstep.
 */
const IDLE_FREQ = 1000000
const ACTIVE_FREQ = 10000

/* Backoff slot for CSMA/CA, microseconds. */
const SLOT_TIME = 1000

/* Handshake attempts for the head frame before it is dropped. */
const MAX_HANDSHAKE_FAILS = 3

// node_addr identifies a node.  Addresses are assigned by the
// simulation scenario and carried on the wire as int32.
type node_addr int32

// ALL_NODES is the broadcast destination, used only by beacons.
const ALL_NODES node_addr = -1

// position_t is a location in map units.  Z is carried for wire
// compatibility but the mobility model and the closeness predicate are
// planar.
type position_t struct {
	x, y, z int32
}

/*-------------------------------------------------------------------
 *
 * Name:	is_closer
 *
 * Purpose:	Decide whether candidate b improves on a for reaching c.
 *
 * Description:	True iff |c-b|^2 + interval^2 < |c-a|^2.  The squared
 *		form avoids square roots and the interval term demands a
 *		strict improvement margin.
 *
 *--------------------------------------------------------------------*/

func is_closer(a position_t, b position_t, c position_t, interval int32) bool {
	var cax = int64(c.x - a.x)
	var cay = int64(c.y - a.y)
	var cbx = int64(c.x - b.x)
	var cby = int64(c.y - b.y)
	var iv = int64(interval)

	return cbx*cbx+cby*cby+iv*iv < cax*cax+cay*cay
}
