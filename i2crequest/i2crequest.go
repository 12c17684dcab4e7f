package i2crequest

import (
	"errors"
	"sync"

	"github.com/godbus/dbus"
)

const (
	dbusName = "org.cacophony.i2c"
	dbusPath = "/org/cacophony/i2c"
)

// TxResponse is a canned response returned by Tx while mocking is enabled.
type TxResponse struct {
	Response []byte
	Err      error
}

var (
	mockMu        sync.Mutex
	mockEnabled   bool
	mockResponses []TxResponse
	mockRequests  [][]byte
)

var errNoMockResponse = errors.New("no mock response left")

// MockTxResponses makes every following Tx return the given responses in order
// instead of calling the I2C dbus service. Used for testing.
func MockTxResponses(responses []TxResponse) {
	mockMu.Lock()
	defer mockMu.Unlock()
	mockEnabled = true
	mockResponses = responses
	mockRequests = nil
}

// MockedWrites returns the write buffers Tx was called with since mocking was enabled.
func MockedWrites() [][]byte {
	mockMu.Lock()
	defer mockMu.Unlock()
	return mockRequests
}

// StopMocking restores normal dbus behaviour.
func StopMocking() {
	mockMu.Lock()
	defer mockMu.Unlock()
	mockEnabled = false
	mockResponses = nil
	mockRequests = nil
}

func mockTx(write []byte) ([]byte, error) {
	mockRequests = append(mockRequests, append([]byte(nil), write...))
	if len(mockResponses) == 0 {
		return nil, errNoMockResponse
	}
	res := mockResponses[0]
	mockResponses = mockResponses[1:]
	return res.Response, res.Err
}

// Tx writes to and then reads readLen bytes from the device at address through the
// I2C dbus service. timeout is in milliseconds.
func Tx(address byte, write []byte, readLen, timeout int) ([]byte, error) {
	mockMu.Lock()
	if mockEnabled {
		defer mockMu.Unlock()
		return mockTx(write)
	}
	mockMu.Unlock()

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(dbusName, dbusPath)

	var response []byte
	if err := obj.Call(dbusName+".Tx", 0, address, write, readLen, timeout).Store(&response); err != nil {
		return nil, err
	}

	return response, nil
}

// CheckAddress returns true if a device acknowledged a read at address.
func CheckAddress(address byte, timeout int) (bool, error) {
	_, err := Tx(address, []byte{0x00}, 2, timeout)
	if err != nil {
		var dbusErr dbus.Error
		if errors.As(err, &dbusErr) && dbusErr.Name == dbusName+".ErrorUsingI2CBus" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
