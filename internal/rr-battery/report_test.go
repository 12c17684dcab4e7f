package battery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartupReport(t *testing.T) {
	data, err := StartupReport(NewCalibration(DefaultConfig())).Encode()
	require.NoError(t, err)
	assert.Equal(t, "energyfulldesign = 21300000\n", string(data))
}

func TestPeriodicReport(t *testing.T) {
	r := PeriodicReport(Averages{Voltage: 3.5, Current: -200.5}, 45)
	data, err := r.Encode()
	require.NoError(t, err)
	assert.Equal(t, "microvolts = 3500000\nmicroamps = -200500\ncapacity = 45\n", string(data))
}

func TestReportTooLarge(t *testing.T) {
	var r Report
	for i := 0; i < 20; i++ {
		r = append(r, Field{KeyCapacity, 100})
	}
	_, err := r.Encode()
	assert.ErrorIs(t, err, ErrReportTooLarge)
}

func TestReporterCadence(t *testing.T) {
	r := NewReporter(5)
	var due []int
	for tick := 1; tick <= 12; tick++ {
		if r.Due(tick == 1) {
			due = append(due, tick)
		}
	}
	assert.Equal(t, []int{1, 6, 11}, due)
}

func TestReporterRestartsOnStateChange(t *testing.T) {
	r := NewReporter(5)
	var due []int
	for tick := 1; tick <= 9; tick++ {
		if r.Due(tick == 1 || tick == 3) {
			due = append(due, tick)
		}
	}
	assert.Equal(t, []int{1, 3, 8}, due)
}

func TestDeviceFileWritesReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redreactor")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	d := DeviceFile{Path: path}
	require.NoError(t, d.WriteReport(Report{{KeyCapacity, 50}}))
	require.NoError(t, d.WriteReport(Report{{KeyCapacity, 49}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "capacity = 50\ncapacity = 49\n", string(data))
}

func TestDeviceFileMissingDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redreactor")
	d := DeviceFile{Path: path}
	assert.Error(t, d.WriteReport(Report{{KeyCapacity, 50}}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
