package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Transport layer - fragmentation, checksums, reassembly.
 *
 * Description:	Outgoing application messages are cut into fragments of
 *		at most MAX_FRAGMENT_SIZE bytes, each wrapped in a
 *		datagram carrying a CRC, the origin, a per-origin serial
 *		number, and its index within the message.  A message is
 *		identified by (source, msg_num) and every datagram of a
 *		message agrees on frag_count.
 *
 *		Incoming fragments collect in a reassembly table until
 *		the set is complete, then the concatenated message goes
 *		up to the application.  The table is byte-accounted;
 *		when a newcomer doesn't fit, whole entries are evicted
 *		in insertion order.
 *
 *		A filled-slot bitmap makes reassembly duplicate-safe:
 *		a repeated fragment overwrites its slot without
 *		advancing the completion count, so a message can neither
 *		complete early nor deliver twice.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"

	"github.com/charmbracelet/log"
)

type datagram_t struct {
	source     node_addr /* origin of the message */
	msg_num    int32     /* per-origin serial number */
	frag_num   int32     /* index of this fragment */
	frag_count int32     /* fragments in the whole message */
	frag       []byte
}

func datagram_encode(d datagram_t, crc func([]byte) uint32) ([]byte, error) {
	if len(d.frag) > MAX_FRAGMENT_SIZE {
		return nil, fmt.Errorf("fragment %d exceeds %d", len(d.frag), MAX_FRAGMENT_SIZE)
	}

	var buf = make([]byte, DATAGRAM_HEADER_SIZE+len(d.frag))
	/* crc at buf[0:4], zero for now */
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(d.frag)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(d.source))
	binary.LittleEndian.PutUint32(buf[12:], uint32(d.msg_num))
	binary.LittleEndian.PutUint32(buf[16:], uint32(d.frag_num))
	binary.LittleEndian.PutUint32(buf[20:], uint32(d.frag_count))
	copy(buf[DATAGRAM_HEADER_SIZE:], d.frag)

	binary.LittleEndian.PutUint32(buf[0:], crc(buf))
	return buf, nil
}

func datagram_decode(buf []byte, crc func([]byte) uint32) (datagram_t, error) {
	var d datagram_t

	if len(buf) < DATAGRAM_HEADER_SIZE {
		return d, fmt.Errorf("datagram too short: %d bytes", len(buf))
	}

	var msg_size = binary.LittleEndian.Uint32(buf[4:])
	if msg_size > MAX_FRAGMENT_SIZE ||
		len(buf) != DATAGRAM_HEADER_SIZE+int(msg_size) {
		return d, fmt.Errorf("datagram length %d does not match msg_size %d", len(buf), msg_size)
	}

	var want = binary.LittleEndian.Uint32(buf[0:])
	binary.LittleEndian.PutUint32(buf[0:], 0)
	var got = crc(buf)
	binary.LittleEndian.PutUint32(buf[0:], want)
	if got != want {
		return d, fmt.Errorf("datagram checksum mismatch: got %08x want %08x", got, want)
	}

	d.source = node_addr(binary.LittleEndian.Uint32(buf[8:]))
	d.msg_num = int32(binary.LittleEndian.Uint32(buf[12:]))
	d.frag_num = int32(binary.LittleEndian.Uint32(buf[16:]))
	d.frag_count = int32(binary.LittleEndian.Uint32(buf[20:]))
	if d.frag_count < 1 || d.frag_num < 0 || d.frag_num >= d.frag_count {
		return d, fmt.Errorf("datagram fragment %d/%d out of range", d.frag_num, d.frag_count)
	}
	if msg_size > 0 {
		d.frag = make([]byte, msg_size)
		copy(d.frag, buf[DATAGRAM_HEADER_SIZE:])
	}

	return d, nil
}

/* A message in flight is named by who sent it and its serial number. */
type reassembly_key_t struct {
	source  node_addr
	msg_num int32
}

type reassembly_entry_t struct {
	frags  [][]byte /* one slot per fragment, indexed by frag_num */
	filled []bool
	got    int /* distinct slots filled */
	bytes  int /* accounted against the table budget */
}

/* Charged per table entry on top of its fragment bytes. */
const reassembly_entry_overhead = 64

type transport_t struct {
	node *node_t
	log  *log.Logger

	next_msg_num int32

	table      map[reassembly_key_t]*reassembly_entry_t
	order      []reassembly_key_t /* insertion order, for eviction */
	free_bytes int
}

func transport_init(node *node_t) *transport_t {
	return &transport_t{
		node:       node,
		log:        node.log.WithPrefix("transport"),
		table:      make(map[reassembly_key_t]*reassembly_entry_t),
		free_bytes: TRANSPORT_BUFF_SIZE,
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	datagram (send path)
 *
 * Purpose:	Fragment an application message and hand the pieces to
 *		the network layer.
 *
 * Description:	ceil(len / MAX_FRAGMENT_SIZE) fragments; an empty
 *		message still produces one, so the receiver has
 *		something to deliver.
 *
 *--------------------------------------------------------------------*/

func (t *transport_t) datagram(msg []byte, dest node_addr) {
	var nfrags = (len(msg) + MAX_FRAGMENT_SIZE - 1) / MAX_FRAGMENT_SIZE
	if nfrags == 0 {
		nfrags = 1
	}

	var msg_num = t.next_msg_num
	t.next_msg_num++

	for i := 0; i < nfrags; i++ {
		var lo = i * MAX_FRAGMENT_SIZE
		var hi = min(lo+MAX_FRAGMENT_SIZE, len(msg))

		var buf, err = datagram_encode(datagram_t{
			source:     t.node.host.node_address(),
			msg_num:    msg_num,
			frag_num:   int32(i),
			frag_count: int32(nfrags),
			frag:       msg[lo:hi],
		}, t.node.host.crc32)
		if err != nil {
			t.log.Error("datagram encode failed", "err", err)
			return
		}

		t.node.network.send(buf, dest)
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	recv
 *
 * Purpose:	Accept one datagram from the network layer.
 *
 * Description:	Checksum failures drop silently.  Single-fragment
 *		messages deliver immediately; the rest collect in the
 *		reassembly table until every slot is filled.
 *
 *--------------------------------------------------------------------*/

func (t *transport_t) recv(buf []byte, sender node_addr) {
	var d, err = datagram_decode(buf, t.node.host.crc32)
	if err != nil {
		t.log.Debug("dropping datagram", "from", sender, "err", err)
		return
	}

	if d.frag_count == 1 {
		t.node.deliver(d.frag, sender)
		return
	}

	var key = reassembly_key_t{source: d.source, msg_num: d.msg_num}
	var entry, exists = t.table[key]

	if exists && len(entry.frags) != int(d.frag_count) {
		/* Violates the message identity invariant; someone is
		   confused.  Don't poison the existing entry. */
		t.log.Debug("dropping fragment with conflicting frag_count",
			"source", d.source, "msg_num", d.msg_num, "frag_count", d.frag_count)
		return
	}

	if !exists {
		if !t.make_room(reassembly_entry_overhead+len(d.frag), key) {
			return
		}
		entry = &reassembly_entry_t{
			frags:  make([][]byte, d.frag_count),
			filled: make([]bool, d.frag_count),
			bytes:  reassembly_entry_overhead,
		}
		t.table[key] = entry
		t.order = append(t.order, key)
		t.free_bytes -= reassembly_entry_overhead
	}

	if entry.filled[d.frag_num] {
		/* Duplicate: refresh the slot, don't advance the count. */
		t.free_bytes += len(entry.frags[d.frag_num])
		entry.bytes -= len(entry.frags[d.frag_num])
		entry.frags[d.frag_num] = d.frag
		entry.bytes += len(d.frag)
		t.free_bytes -= len(d.frag)
		return
	}

	if !t.make_room(len(d.frag), key) {
		return
	}
	if _, still := t.table[key]; !still {
		/* Eviction to make room took the entry itself. */
		return
	}

	entry.frags[d.frag_num] = d.frag
	entry.filled[d.frag_num] = true
	entry.got++
	entry.bytes += len(d.frag)
	t.free_bytes -= len(d.frag)

	if entry.got == int(d.frag_count) {
		t.remove(key)

		var total = 0
		for _, f := range entry.frags {
			total += len(f)
		}
		var msg = make([]byte, 0, total)
		for _, f := range entry.frags {
			msg = append(msg, f...)
		}

		t.node.deliver(msg, sender)
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	make_room
 *
 * Purpose:	Evict oldest entries until cost bytes fit.
 *
 * Returns:	false if the fragment should be discarded - either the
 *		budget can never hold it, or eviction consumed the very
 *		entry it was making room for.
 *
 *--------------------------------------------------------------------*/

func (t *transport_t) make_room(cost int, for_key reassembly_key_t) bool {
	for t.free_bytes < cost {
		if len(t.order) == 0 {
			return false
		}
		var victim = t.order[0]
		t.remove(victim)
		t.log.Debug("evicted reassembly entry", "source", victim.source, "msg_num", victim.msg_num)
		if victim == for_key {
			return false
		}
	}
	return true
}

func (t *transport_t) remove(key reassembly_key_t) {
	var entry, exists = t.table[key]
	if !exists {
		return
	}
	delete(t.table, key)
	t.free_bytes += entry.bytes
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}
