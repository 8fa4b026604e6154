package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Topology oracle - who is where, and who makes a good
 *		next hop.
 *
 * Description:	Every ORACLE_INTERVAL this node broadcasts a beacon:
 *		its own position and timestamp, its free public buffer,
 *		and as much of its neighbour table as fits in one packet.
 *		Received beacons build the table the other way.
 *
 *		Position gossip is second-hand and possibly stale, so a
 *		piggy-backed record only overwrites a stored one when its
 *		timestamp is strictly newer.  Timestamps are in the
 *		original observer's clock; they are only ever compared
 *		against other timestamps from that same observer.
 *
 *		A neighbour is "live" - actually reachable right now,
 *		rather than merely known - while its most recent direct
 *		beacon is no older than ORACLE_WAIT.
 *
 *		Routing is non-flooding.  nth_best recommends the first
 *		live neighbour with enough advertised buffer that is
 *		strictly closer to the destination than this node
 *		(first-improving: minimal scan cost and decision latency,
 *		not best-improving).
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
)

/* i32 addr + i32 x + i32 y + i32 z + u32 timestamp */
const NODE_LOCATION_SIZE = 20

/* u32 crc + sender location + u32 free_buffer + u32 n_locations */
const ORACLE_HEADER_SIZE = 4 + NODE_LOCATION_SIZE + 4 + 4

/* How many piggy-backed locations fit in one packet. */
const MAX_BEACON_LOCATIONS = (MAX_PACKET_SIZE - ORACLE_HEADER_SIZE) / NODE_LOCATION_SIZE

// node_location_t is one gossiped position observation.
type node_location_t struct {
	addr node_addr
	loc  position_t
	/* When the observation was made, seconds, in the observer's own
	   clock. */
	timestamp uint32
}

// beacon_t is the broadcast payload.
type beacon_t struct {
	sender      node_location_t
	free_buffer uint32
	locations   []node_location_t
}

// neighbour_t is one table entry.  The table is kept sorted by address
// for binary-search lookup.
type neighbour_t struct {
	nl          node_location_t
	free_buffer uint32
	/* Local monotonic time of the most recent beacon heard directly
	   from this node.  Zero if only ever heard of second-hand. */
	last_direct_beacon int64
}

type oracle_t struct {
	node *node_t
	log  *log.Logger

	db []neighbour_t /* sorted by nl.addr */
}

func oracle_init(node *node_t) *oracle_t {
	var o = &oracle_t{
		node: node,
		log:  node.log.WithPrefix("oracle"),
	}

	/* Jitter the first beacon so co-booted nodes don't stay
	   synchronised forever. */
	var delay = 1 + node.host.rand()%ORACLE_INTERVAL
	node.host.start_timer(EV_TIMER7, delay, 0)

	return o
}

/*
 * Beacon wire codec.  Layout:
 *
 *	u32 crc32 | sender node_location | u32 free_buffer |
 *	u32 n_locations | n x node_location
 *
 * crc32 covers the whole encoded beacon with the crc field zeroed.
 */

func put_node_location(buf []byte, nl node_location_t) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(nl.addr))
	binary.LittleEndian.PutUint32(buf[4:], uint32(nl.loc.x))
	binary.LittleEndian.PutUint32(buf[8:], uint32(nl.loc.y))
	binary.LittleEndian.PutUint32(buf[12:], uint32(nl.loc.z))
	binary.LittleEndian.PutUint32(buf[16:], nl.timestamp)
}

func get_node_location(buf []byte) node_location_t {
	return node_location_t{
		addr: node_addr(binary.LittleEndian.Uint32(buf[0:])),
		loc: position_t{
			x: int32(binary.LittleEndian.Uint32(buf[4:])),
			y: int32(binary.LittleEndian.Uint32(buf[8:])),
			z: int32(binary.LittleEndian.Uint32(buf[12:])),
		},
		timestamp: binary.LittleEndian.Uint32(buf[16:]),
	}
}

func beacon_encode(b beacon_t, crc func([]byte) uint32) ([]byte, error) {
	if len(b.locations) > MAX_BEACON_LOCATIONS {
		return nil, fmt.Errorf("beacon with %d locations exceeds packet budget", len(b.locations))
	}

	var buf = make([]byte, ORACLE_HEADER_SIZE+NODE_LOCATION_SIZE*len(b.locations))
	/* crc at buf[0:4], zero for now */
	put_node_location(buf[4:], b.sender)
	binary.LittleEndian.PutUint32(buf[4+NODE_LOCATION_SIZE:], b.free_buffer)
	binary.LittleEndian.PutUint32(buf[8+NODE_LOCATION_SIZE:], uint32(len(b.locations)))
	for i, nl := range b.locations {
		put_node_location(buf[ORACLE_HEADER_SIZE+i*NODE_LOCATION_SIZE:], nl)
	}

	binary.LittleEndian.PutUint32(buf[0:], crc(buf))
	return buf, nil
}

func beacon_decode(buf []byte, crc func([]byte) uint32) (beacon_t, error) {
	var b beacon_t

	if len(buf) < ORACLE_HEADER_SIZE {
		return b, fmt.Errorf("beacon too short: %d bytes", len(buf))
	}

	var n = binary.LittleEndian.Uint32(buf[8+NODE_LOCATION_SIZE:])
	if int(n) > MAX_BEACON_LOCATIONS ||
		len(buf) != ORACLE_HEADER_SIZE+NODE_LOCATION_SIZE*int(n) {
		return b, fmt.Errorf("beacon length %d does not match %d locations", len(buf), n)
	}

	var want = binary.LittleEndian.Uint32(buf[0:])
	binary.LittleEndian.PutUint32(buf[0:], 0)
	var got = crc(buf)
	binary.LittleEndian.PutUint32(buf[0:], want)
	if got != want {
		return b, fmt.Errorf("beacon checksum mismatch: got %08x want %08x", got, want)
	}

	b.sender = get_node_location(buf[4:])
	b.free_buffer = binary.LittleEndian.Uint32(buf[4+NODE_LOCATION_SIZE:])
	b.locations = make([]node_location_t, n)
	for i := range b.locations {
		b.locations[i] = get_node_location(buf[ORACLE_HEADER_SIZE+i*NODE_LOCATION_SIZE:])
	}

	return b, nil
}

/*
 * Sorted-table helpers.
 */

func (o *oracle_t) find(addr node_addr) (int, bool) {
	return slices.BinarySearchFunc(o.db, addr, func(n neighbour_t, a node_addr) int {
		switch {
		case n.nl.addr < a:
			return -1
		case n.nl.addr > a:
			return 1
		}
		return 0
	})
}

/*-------------------------------------------------------------------
 *
 * Name:	save_position
 *
 * Purpose:	Insert or refresh one gossiped observation.
 *
 * Description:	New addresses are inserted keeping the table sorted.
 *		For a known address the position is overwritten only
 *		when the incoming timestamp is strictly newer - a stale
 *		report never clobbers a fresh one.
 *
 *--------------------------------------------------------------------*/

func (o *oracle_t) save_position(nl node_location_t) {
	var i, found = o.find(nl.addr)
	if !found {
		o.db = slices.Insert(o.db, i, neighbour_t{nl: nl})
		return
	}
	if o.db[i].nl.timestamp < nl.timestamp {
		o.db[i].nl.loc = nl.loc
		o.db[i].nl.timestamp = nl.timestamp
	}
}

func (o *oracle_t) query_position(addr node_addr) (position_t, bool) {
	var i, found = o.find(addr)
	if !found {
		return position_t{}, false
	}
	return o.db[i].nl.loc, true
}

/*-------------------------------------------------------------------
 *
 * Name:	prune
 *
 * Purpose:	Trim the table to what fits in one beacon.
 *
 * Description:	Entries with the oldest last direct beacon go first -
 *		they are the least likely to still matter.  Called before
 *		every beacon; a no-op unless the table has outgrown the
 *		per-packet payload budget.
 *
 *--------------------------------------------------------------------*/

func (o *oracle_t) prune() {
	for len(o.db) > MAX_BEACON_LOCATIONS {
		var oldest = 0
		for i := range o.db {
			if o.db[i].last_direct_beacon < o.db[oldest].last_direct_beacon {
				oldest = i
			}
		}
		o.db = slices.Delete(o.db, oldest, oldest+1)
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	beacon_timer_expired
 *
 * Purpose:	Emit our periodic beacon and reschedule.
 *
 *--------------------------------------------------------------------*/

func (o *oracle_t) beacon_timer_expired() {
	o.emit_beacon()
	o.node.host.start_timer(EV_TIMER7, ORACLE_INTERVAL, 0)
}

func (o *oracle_t) emit_beacon() {
	var host = o.node.host

	o.prune()

	var b = beacon_t{
		sender: node_location_t{
			addr:      host.node_address(),
			loc:       host.get_position(),
			timestamp: host.time_of_day_sec(),
		},
		free_buffer: uint32(o.node.network.public_free_bytes()),
		locations:   make([]node_location_t, len(o.db)),
	}
	for i := range o.db {
		b.locations[i] = o.db[i].nl
	}

	var buf, err = beacon_encode(b, host.crc32)
	if err != nil {
		o.log.Error("beacon encode failed", "err", err)
		return
	}

	o.node.link.send_info(buf, ALL_NODES)
}

/*-------------------------------------------------------------------
 *
 * Name:	ingest
 *
 * Purpose:	Process one received beacon.
 *
 * Description:	Piggy-backed records go through the strictly-newer
 *		rule.  The direct sender is special: its own observation
 *		of itself is by definition the freshest, so its position
 *		is overwritten outright, its advertised buffer stored,
 *		and its last-direct-beacon stamp set to local now.
 *
 *		Finishes by giving buffered packets a new chance to
 *		leave, since the topology estimate just changed.
 *
 *--------------------------------------------------------------------*/

func (o *oracle_t) ingest(buf []byte, src node_addr) {
	var self = o.node.host.node_address()

	var b, err = beacon_decode(buf, o.node.host.crc32)
	if err != nil {
		o.log.Debug("dropping beacon", "from", src, "err", err)
		return
	}

	for _, nl := range b.locations {
		if nl.addr == self {
			continue
		}
		o.save_position(nl)
	}

	if b.sender.addr != self {
		var i, found = o.find(b.sender.addr)
		if !found {
			o.db = slices.Insert(o.db, i, neighbour_t{nl: b.sender})
			i, _ = o.find(b.sender.addr)
		} else {
			o.db[i].nl.loc = b.sender.loc
			if o.db[i].nl.timestamp < b.sender.timestamp {
				o.db[i].nl.timestamp = b.sender.timestamp
			}
		}
		o.db[i].free_buffer = b.free_buffer
		o.db[i].last_direct_beacon = o.node.host.time_in_usec()
	}

	o.node.network.flush_buffered()
}

/*-------------------------------------------------------------------
 *
 * Name:	nth_best
 *
 * Purpose:	Recommend a next hop for a packet.
 *
 * Inputs:	n		- rank; only 0 is meaningful.
 *		dest		- ultimate destination.
 *		needed_bytes	- encoded packet size the hop must be
 *				  able to buffer.
 *
 * Returns:	The first eligible neighbour in table order, or false if
 *		the packet should be buffered instead.
 *
 * Description:	Eligible means: heard from directly within ORACLE_WAIT,
 *		advertised buffer of at least needed_bytes, and either
 *		it IS the destination or it is strictly closer to the
 *		destination than we are by the MINDIST margin.
 *		Never recommends this node itself.
 *
 *--------------------------------------------------------------------*/

func (o *oracle_t) nth_best(n int, dest node_addr, needed_bytes int) (node_addr, bool) {
	if n != 0 {
		return 0, false
	}

	var dest_pos, known = o.query_position(dest)
	if !known {
		return 0, false
	}

	var host = o.node.host
	var now = host.time_in_usec()
	var self = host.node_address()
	var my_pos = host.get_position()

	for i := range o.db {
		var nb = &o.db[i]

		if nb.nl.addr == self {
			continue
		}
		if nb.last_direct_beacon == 0 || now-nb.last_direct_beacon > ORACLE_WAIT {
			continue /* not live */
		}
		if int(nb.free_buffer) < needed_bytes {
			continue
		}
		if nb.nl.addr == dest {
			return nb.nl.addr, true
		}
		if is_closer(my_pos, nb.nl.loc, dest_pos, MINDIST) {
			return nb.nl.addr, true
		}
	}

	return 0, false
}
