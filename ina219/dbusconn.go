package ina219

import (
	"fmt"

	"github.com/TheCacophonyProject/redreactor-controller/i2crequest"
)

// DBusConn sends transactions through the I2C dbus service instead of opening
// the bus, for when another process owns it.
type DBusConn struct {
	Address   byte
	TimeoutMs int
}

func (c *DBusConn) Tx(w, r []byte) error {
	res, err := i2crequest.Tx(c.Address, w, len(r), c.TimeoutMs)
	if err != nil {
		return err
	}
	if len(res) != len(r) {
		return fmt.Errorf("expected %d bytes from 0x%02X, got %d", len(r), c.Address, len(res))
	}
	copy(r, res)
	return nil
}
