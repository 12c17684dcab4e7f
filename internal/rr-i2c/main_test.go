package i2c

import (
	"errors"
	"testing"

	"github.com/TheCacophonyProject/redreactor-controller/i2crequest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func TestHexStringToByte(t *testing.T) {
	b, err := hexStringToByte("0x40")
	require.NoError(t, err)
	assert.Equal(t, byte(0x40), b)

	_, err = hexStringToByte("40")
	assert.Error(t, err)
	_, err = hexStringToByte("0xZZ")
	assert.Error(t, err)
}

func TestHexStringToUint16(t *testing.T) {
	v, err := hexStringToUint16("0x399F")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x399F), v)

	v, err = hexStringToUint16("0x8")
	require.NoError(t, err)
	assert.Equal(t, uint16(8), v)

	_, err = hexStringToUint16("0x12345")
	assert.Error(t, err)
}

func TestRegisterReadWrite(t *testing.T) {
	i2crequest.MockTxResponses([]i2crequest.TxResponse{
		{Response: []byte{0x1F, 0x40}},
		{},
	})
	defer i2crequest.StopMocking()

	val, err := readRegister(0x40, 0x02)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1F40), val)

	require.NoError(t, writeRegister(0x40, 0x00, 0x399F))
	assert.Equal(t, [][]byte{{0x02}, {0x00, 0x39, 0x9F}}, i2crequest.MockedWrites())
}

func TestReadRegisterShortResponse(t *testing.T) {
	i2crequest.MockTxResponses([]i2crequest.TxResponse{{Response: []byte{0x1F}}})
	defer i2crequest.StopMocking()

	_, err := readRegister(0x40, 0x02)
	assert.Error(t, err)
}

type fakeBus struct {
	failures int
	calls    int
	data     []byte
}

func (b *fakeBus) String() string                    { return "fake" }
func (b *fakeBus) SetSpeed(_ physic.Frequency) error { return nil }

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	b.calls++
	if b.calls <= b.failures {
		return errors.New("nack")
	}
	copy(r, b.data)
	return nil
}

func TestServiceRetries(t *testing.T) {
	bus := &fakeBus{failures: 2, data: []byte{0x12, 0x34}}
	s := newService(bus)

	data, dbusErr := s.Tx(0x40, []byte{0x02}, 2, 1000)
	require.Nil(t, dbusErr)
	assert.Equal(t, []byte{0x12, 0x34}, data)
	assert.Equal(t, 3, bus.calls)
}

func TestServiceGivesUp(t *testing.T) {
	bus := &fakeBus{failures: 10}
	s := newService(bus)

	_, dbusErr := s.Tx(0x40, []byte{0x02}, 2, 1000)
	require.NotNil(t, dbusErr)
	assert.Equal(t, "org.cacophony.i2c.ErrorUsingI2CBus", dbusErr.Name)
	assert.Equal(t, 3, bus.calls)
}
