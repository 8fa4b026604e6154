package dtn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimEventOrdering(t *testing.T) {
	var s = new_sim(1, test_radio())

	var order []int
	s.schedule(300, func() { order = append(order, 3) })
	s.schedule(100, func() { order = append(order, 1) })
	s.schedule(200, func() { order = append(order, 2) })
	/* Same timestamp: insertion order breaks the tie. */
	s.schedule(200, func() { order = append(order, 4) })

	s.run_until(1000)

	assert.Equal(t, []int{1, 2, 4, 3}, order)
	assert.Equal(t, int64(1000), s.now)
}

func TestSimCancelledEventNeverFires(t *testing.T) {
	var s = new_sim(1, test_radio())

	var fired = false
	var ev = s.schedule(100, func() { fired = true })
	ev.cancelled = true

	s.run_until(1000)

	assert.False(t, fired)
}

func TestSimStoppedTimerNeverFires(t *testing.T) {
	var s = new_sim(1, test_radio())
	var a = s.add_node(1, position_t{}, nil, test_node_config())

	// EV_TIMER3 is unused by the stack.  Stopping the timer must mark
	// its event cancelled (run_until skips those) and the timer map
	// must forget it.
	var id = a.start_timer(EV_TIMER3, 500, 0)
	var ev = a.timers[id]
	a.stop_timer(id)

	s.run_until(1000)

	assert.True(t, ev.cancelled)
	assert.NotContains(t, a.timers, id)
}

func TestSimCarrierSenseDuringTransmission(t *testing.T) {
	var s = new_sim(1, test_radio())
	var a = s.add_node(1, position_t{x: 0, y: 0}, nil, test_node_config())
	var b = s.add_node(2, position_t{x: 50, y: 0}, nil, test_node_config())

	var frame, err = frame_encode(frame_t{kind: DL_DATA, dest: 2, src: 1, payload: make([]byte, 1000)}, a.crc32)
	require.NoError(t, err)

	var sensed_mid, sensed_after bool
	s.schedule(1000, func() { _ = a.write_physical(frame) })
	/* 1000 bytes at 2 Mb/s is ~4 ms on the air. */
	s.schedule(2000, func() { sensed_mid = b.carrier_sense() })
	s.schedule(1000000, func() { sensed_after = b.carrier_sense() })

	s.run_until(2 * sec)

	assert.True(t, sensed_mid, "the channel is busy while a neighbour transmits")
	assert.False(t, sensed_after, "and quiet again afterwards")
}

func TestSimTransmitterCannotHearItself(t *testing.T) {
	var s = new_sim(1, test_radio())
	var a = s.add_node(1, position_t{x: 0, y: 0}, nil, test_node_config())

	var frame, err = frame_encode(frame_t{kind: DL_DATA, dest: 1, src: 1, payload: []byte("echo")}, a.crc32)
	require.NoError(t, err)

	s.schedule(1000, func() { _ = a.write_physical(frame) })
	s.run_until(sec)

	assert.Empty(t, a.deliveries)
}

func TestSimOversizedFrameRefused(t *testing.T) {
	var s = new_sim(1, test_radio())
	var a = s.add_node(1, position_t{}, nil, test_node_config())

	assert.Error(t, a.write_physical(make([]byte, MAX_FRAME_SIZE+1)))
}

// The whole world is a pure function of the scenario.
func TestSimDeterminism(t *testing.T) {
	var cfg = DefaultScenario()
	cfg.Seed = 11
	cfg.Nodes = 4
	cfg.MapWidth = 300
	cfg.MapHeight = 300
	cfg.DurationSec = 20

	var first, err1 = RunScenario(cfg)
	require.NoError(t, err1)
	var second, err2 = RunScenario(cfg)
	require.NoError(t, err2)

	assert.Equal(t, first, second)
}
