package dtn

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func test_packet(tag int, size int) packet_t {
	var payload = make([]byte, size)
	if size > 0 {
		copy(payload, fmt.Sprintf("%d", tag))
	}
	return packet_t{source: 1, dest: 2, payload: payload}
}

func TestStackLIFO(t *testing.T) {
	var s = new_packet_stack(NETWORK_BUFF_SIZE)

	s.push(test_packet(1, 10))
	s.push(test_packet(2, 10))
	s.push(test_packet(3, 10))

	var p, ok = s.pop()
	require.True(t, ok)
	assert.Equal(t, byte('3'), p.payload[0])

	p, ok = s.pop()
	require.True(t, ok)
	assert.Equal(t, byte('2'), p.payload[0])

	p, ok = s.pop()
	require.True(t, ok)
	assert.Equal(t, byte('1'), p.payload[0])

	_, ok = s.pop()
	assert.False(t, ok)
	assert.Equal(t, NETWORK_BUFF_SIZE, s.free_bytes)
}

func TestStackAccounting(t *testing.T) {
	var s = new_packet_stack(NETWORK_BUFF_SIZE)

	var p = test_packet(1, 100)
	s.push(p)
	assert.Equal(t, NETWORK_BUFF_SIZE-packet_cost(p), s.free_bytes)

	s.pop()
	assert.Equal(t, NETWORK_BUFF_SIZE, s.free_bytes)
}

// Overflow sheds from the bottom - the oldest packets - in insertion
// order, and never drives the accounting negative.
func TestStackDropOldest(t *testing.T) {
	// Room for three 100-byte packets but not four.
	var capacity = 3 * packet_cost(test_packet(0, 100))
	var s = new_packet_stack(capacity)

	s.push(test_packet(1, 100))
	s.push(test_packet(2, 100))
	s.push(test_packet(3, 100))
	require.Equal(t, 0, s.free_bytes)

	var dropped = s.push(test_packet(4, 100))
	require.Len(t, dropped, 1)
	assert.Equal(t, byte('1'), dropped[0].payload[0], "oldest should go first")
	assert.GreaterOrEqual(t, s.free_bytes, 0)

	// Top is the newcomer, bottom is now 2.
	var p, _ = s.pop()
	assert.Equal(t, byte('4'), p.payload[0])
	var old, ok = s.drop_oldest()
	require.True(t, ok)
	assert.Equal(t, byte('2'), old.payload[0])
}

func TestStackBufferBound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var s = new_packet_stack(10000)

		var n = rapid.IntRange(1, 200).Draw(t, "n")
		for i := 0; i < n; i++ {
			var size = rapid.IntRange(0, MAX_DATAGRAM_SIZE).Draw(t, "size")
			s.push(test_packet(i, size))

			var used = s.capacity - s.free_bytes
			assert.GreaterOrEqual(t, s.free_bytes, 0)
			assert.LessOrEqual(t, used, s.capacity)
		}
	})
}
