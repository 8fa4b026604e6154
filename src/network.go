package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Network layer - opportunistic store-and-forward routing.
 *
 * Description:	For every packet, ask the oracle whether some neighbour
 *		brings it closer to its destination right now.  If yes,
 *		hand it to the link layer addressed to that neighbour.
 *		If no, buffer it; every valid beacon re-opens the
 *		question via flush_buffered.
 *
 *		Two stacks are kept so other hosts cannot monopolise
 *		this node's memory: locally-originated packets live on
 *		the private stack, transit packets on the public one.
 *		Only the public stack's free space is advertised in
 *		beacons.
 *
 *		A packet is unchanged by intermediate forwarders.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"

	"github.com/charmbracelet/log"
)

type packet_t struct {
	source  node_addr /* original sender */
	dest    node_addr /* ultimate destination */
	payload []byte
}

func packet_encode(p packet_t) ([]byte, error) {
	if PACKET_HEADER_SIZE+len(p.payload) > MAX_PACKET_SIZE {
		return nil, fmt.Errorf("packet payload %d exceeds %d", len(p.payload), MAX_DATAGRAM_SIZE)
	}
	var buf = make([]byte, PACKET_HEADER_SIZE+len(p.payload))
	binary.LittleEndian.PutUint32(buf[0:], uint32(p.source))
	binary.LittleEndian.PutUint32(buf[4:], uint32(p.dest))
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(p.payload)))
	copy(buf[PACKET_HEADER_SIZE:], p.payload)
	return buf, nil
}

func packet_decode(buf []byte) (packet_t, error) {
	var p packet_t
	if len(buf) < PACKET_HEADER_SIZE {
		return p, fmt.Errorf("packet too short: %d bytes", len(buf))
	}
	var plen = binary.LittleEndian.Uint32(buf[8:])
	if plen != uint32(len(buf)-PACKET_HEADER_SIZE) {
		return p, fmt.Errorf("packet length field %d does not match %d payload bytes",
			plen, len(buf)-PACKET_HEADER_SIZE)
	}
	p.source = node_addr(binary.LittleEndian.Uint32(buf[0:]))
	p.dest = node_addr(binary.LittleEndian.Uint32(buf[4:]))
	if plen > 0 {
		p.payload = make([]byte, plen)
		copy(p.payload, buf[PACKET_HEADER_SIZE:])
	}
	return p, nil
}

type network_t struct {
	node *node_t
	log  *log.Logger

	private *packet_stack_t /* packets this node originated */
	public  *packet_stack_t /* transit packets carried for others */
}

func net_init(node *node_t) *network_t {
	return &network_t{
		node:    node,
		log:     node.log.WithPrefix("net"),
		private: new_packet_stack(NETWORK_BUFF_SIZE),
		public:  new_packet_stack(NETWORK_BUFF_SIZE),
	}
}

/* Advertised in beacons so peers can tell whether we have room to
   carry for them. */
func (nw *network_t) public_free_bytes() int {
	return nw.public.free_bytes
}

func (nw *network_t) private_free_bytes() int {
	return nw.private.free_bytes
}

/*-------------------------------------------------------------------
 *
 * Name:	send
 *
 * Purpose:	Originate a new packet from this node.
 *
 * Inputs:	msg	- payload (a serialised datagram).
 *		dest	- ultimate destination.
 *
 * Returns:	false if the payload can never fit in one packet.
 *		true otherwise, whether the packet left immediately or
 *		was buffered.
 *
 *--------------------------------------------------------------------*/

func (nw *network_t) send(msg []byte, dest node_addr) bool {
	if PACKET_HEADER_SIZE+len(msg) > MAX_PACKET_SIZE {
		nw.log.Debug("dropping oversized send", "len", len(msg), "dest", dest)
		return false
	}

	var p = packet_t{
		source:  nw.node.host.node_address(),
		dest:    dest,
		payload: append([]byte(nil), msg...),
	}
	nw.try_send(p, nw.private)
	return true
}

/*-------------------------------------------------------------------
 *
 * Name:	recv
 *
 * Purpose:	Accept a DATA frame payload from the link layer.
 *
 * Description:	If the packet is for this node, peel the header and
 *		deliver to the transport layer.  Otherwise it is transit
 *		traffic: forward it now or carry it on the public stack.
 *
 *--------------------------------------------------------------------*/

func (nw *network_t) recv(buf []byte, src node_addr) {
	var p, err = packet_decode(buf)
	if err != nil {
		nw.log.Debug("dropping malformed packet", "from", src, "err", err)
		return
	}

	if p.dest == nw.node.host.node_address() {
		nw.node.transport.recv(p.payload, p.source)
		return
	}

	nw.try_send(p, nw.public)
}

/*-------------------------------------------------------------------
 *
 * Name:	try_send
 *
 * Purpose:	Forward a packet if the oracle knows a next hop, else
 *		buffer it on the given stack.
 *
 *--------------------------------------------------------------------*/

func (nw *network_t) try_send(p packet_t, s *packet_stack_t) {
	var size = PACKET_HEADER_SIZE + len(p.payload)

	var hop, ok = nw.node.oracle.nth_best(0, p.dest, size)
	if !ok {
		var dropped = s.push(p)
		for _, d := range dropped {
			nw.log.Debug("shed buffered packet", "source", d.source, "dest", d.dest, "len", len(d.payload))
		}
		return
	}

	var buf, err = packet_encode(p)
	if err != nil {
		/* Guarded in send(); transit packets arrived in one frame
		   so they fit by construction. */
		nw.log.Debug("dropping unencodable packet", "err", err)
		return
	}
	nw.node.link.send_data(buf, hop)
}

/*-------------------------------------------------------------------
 *
 * Name:	flush_buffered
 *
 * Purpose:	Give every stalled packet a fresh routing decision.
 *
 * Description:	Called by the oracle after each valid beacon.  Pop all
 *		packets into a temporary stack, retrying each; failures
 *		accumulate there and are pushed back, which restores the
 *		original relative order.
 *
 *--------------------------------------------------------------------*/

func (nw *network_t) flush_buffered() {
	nw.flush_stack(nw.private)
	nw.flush_stack(nw.public)
}

func (nw *network_t) flush_stack(s *packet_stack_t) {
	var temp = new_packet_stack(s.capacity)

	for {
		var p, ok = s.pop()
		if !ok {
			break
		}
		nw.try_send(p, temp)
	}

	for {
		var p, ok = temp.pop()
		if !ok {
			break
		}
		s.push(p)
	}
}
