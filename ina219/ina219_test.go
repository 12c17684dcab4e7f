package ina219

import (
	"errors"
	"testing"
	"time"

	"github.com/TheCacophonyProject/redreactor-controller/i2crequest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noSleepFn = func(d time.Duration) {}

type fakeConn struct {
	writes    [][]byte
	registers map[byte]uint16
	failures  int
}

func newFakeConn() *fakeConn {
	return &fakeConn{registers: map[byte]uint16{}}
}

func (c *fakeConn) Tx(w, r []byte) error {
	if c.failures > 0 {
		c.failures--
		return errors.New("bus error")
	}
	c.writes = append(c.writes, append([]byte(nil), w...))
	if len(r) == 2 {
		v := c.registers[w[0]]
		r[0] = byte(v >> 8)
		r[1] = byte(v)
	}
	return nil
}

func TestConfigureRedReactor(t *testing.T) {
	sleepFn = noSleepFn
	conn := newFakeConn()
	dev := New(conn, 0.05, 6.4)

	require.NoError(t, dev.Configure(Range16V, Gain8_320mV, ADC12Bit, ADC12Bit))
	require.Len(t, conn.writes, 3)

	assert.Equal(t, []byte{regConfig, 0x80, 0x00}, conn.writes[0])

	assert.Equal(t, byte(regCalibration), conn.writes[1][0])
	calibration := uint16(conn.writes[1][1])<<8 | uint16(conn.writes[1][2])
	assert.InDelta(t, 4198, int(calibration), 1)

	assert.Equal(t, []byte{regConfig, 0x19, 0x9F}, conn.writes[2])
	assert.InDelta(t, 6.4/32800, dev.currentLSB, 1e-12)
}

func TestConfigureRejectsTooMuchCurrent(t *testing.T) {
	sleepFn = noSleepFn
	dev := New(newFakeConn(), 0.05, 10)
	assert.Error(t, dev.Configure(Range16V, Gain8_320mV, ADC12Bit, ADC12Bit))
}

func TestSupplyVoltage(t *testing.T) {
	sleepFn = noSleepFn
	conn := newFakeConn()
	dev := New(conn, 0.05, 6.4)
	// 4000mV on the bus, 10mV over the shunt.
	conn.registers[regBusVoltage] = uint16(1000) << 3
	conn.registers[regShuntVoltage] = 1000

	v, err := dev.SupplyVoltage()
	require.NoError(t, err)
	assert.InDelta(t, 4.01, v, 1e-9)
}

func TestBusOverflow(t *testing.T) {
	sleepFn = noSleepFn
	conn := newFakeConn()
	dev := New(conn, 0.05, 6.4)
	conn.registers[regBusVoltage] = uint16(1000)<<3 | busOverflowBit

	_, err := dev.SupplyVoltage()
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCurrentIsSigned(t *testing.T) {
	sleepFn = noSleepFn
	conn := newFakeConn()
	dev := New(conn, 0.05, 6.4)

	_, err := dev.Current()
	assert.ErrorIs(t, err, ErrNotConfigured)

	require.NoError(t, dev.Configure(Range16V, Gain8_320mV, ADC12Bit, ADC12Bit))
	conn.registers[regCurrent] = uint16(0xFFFF - 1024 + 1) // -1024
	ma, err := dev.Current()
	require.NoError(t, err)
	assert.InDelta(t, -1024*6.4/32800*1000, ma, 1e-6)
}

func TestReadRetries(t *testing.T) {
	sleepFn = noSleepFn
	conn := newFakeConn()
	dev := New(conn, 0.05, 6.4)
	conn.registers[regShuntVoltage] = 500

	conn.failures = maxTxAttempts - 1
	mv, err := dev.ShuntVoltage()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, mv, 1e-9)

	conn.failures = maxTxAttempts
	_, err = dev.ShuntVoltage()
	assert.Error(t, err)
}

func TestDBusConn(t *testing.T) {
	sleepFn = noSleepFn
	defer i2crequest.StopMocking()
	i2crequest.MockTxResponses([]i2crequest.TxResponse{
		{Response: []byte{0x1F, 0x40}},
		{Response: []byte{0x00}},
	})
	dev := New(&DBusConn{Address: DefaultAddress, TimeoutMs: 1000}, 0.05, 6.4)

	v, err := dev.BusVoltage()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 1e-9)
	assert.Equal(t, [][]byte{{regBusVoltage}}, i2crequest.MockedWrites())

	_, err = dev.BusVoltage()
	assert.Error(t, err)
}
