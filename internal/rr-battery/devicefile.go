package battery

import (
	"fmt"
	"os"
)

// DeviceFile writes reports to the character device of the RedReactor kernel
// module. The device is opened for every write and closed straight after.
type DeviceFile struct {
	Path string
}

func (d DeviceFile) WriteReport(r Report) (err error) {
	data, err := r.Encode()
	if err != nil {
		return err
	}
	// No O_CREATE, a missing driver should fail rather than leave a regular file behind.
	file, err := os.OpenFile(d.Path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	// The driver only accepts a report in a single write call.
	n, err := file.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("short write to %s: %d of %d bytes", d.Path, n, len(data))
	}
	return nil
}
