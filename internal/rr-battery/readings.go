package battery

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const readingsMaxLines = 5000

// ReadingsLog appends every reported status to a CSV file and trims it to
// the last readingsMaxLines lines once a day.
type ReadingsLog struct {
	path      string
	lastTrim  time.Time
	trimEvery time.Duration
}

func NewReadingsLog(path string) *ReadingsLog {
	r := &ReadingsLog{path: path, trimEvery: 24 * time.Hour}
	r.trim()
	return r
}

func (r *ReadingsLog) Publish(s Status) error {
	file, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s, %.3f, %.1f, %.3f, %.1f, %d, %s\n",
		s.Time.Format("2006-01-02 15:04:05"),
		s.Voltage, s.Current, s.AvgVoltage, s.AvgCurrent, s.Capacity, s.State)
	if _, err := file.WriteString(line); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	if time.Since(r.lastTrim) > r.trimEvery {
		r.trim()
	}
	return nil
}

func (r *ReadingsLog) trim() {
	if err := keepLastLines(r.path, readingsMaxLines); err != nil {
		log.Errorf("Could not truncate readings file: %v", err)
		return
	}
	r.lastTrim = time.Now()
}

// keepLastLines keeps the last maxLines lines of filePath.
func keepLastLines(filePath string, maxLines int) error {
	in, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	defer in.Close()

	ring := make([]string, maxLines)
	count := 0
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		ring[count%maxLines] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if count <= maxLines {
		return nil
	}

	tmpFile := filepath.Join(filepath.Dir(filePath), "."+filepath.Base(filePath)+".tmp")
	out, err := os.Create(tmpFile)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	for i := count - maxLines; i < count; i++ {
		w.WriteString(ring[i%maxLines])
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(tmpFile)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return os.Rename(tmpFile, filePath)
}
