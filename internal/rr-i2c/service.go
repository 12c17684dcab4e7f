package i2c

import (
	"errors"
	"sync"
	"time"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	dbusName   = "org.cacophony.i2c"
	dbusPath   = "/org/cacophony/i2c"
	txRetries  = 2
	retryPause = 20 * time.Millisecond
)

type service struct {
	requests     chan request
	bus          i2c.Bus
	mutex        sync.Mutex
	requestCount int
}

func startService() error {
	log.Info("Starting I2C service")
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	log.Debug("Initializing host")
	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open("")
	if err != nil {
		return err
	}

	s := newService(bus)
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return nil
}

// newService starts the goroutine that runs queued transactions one at a time.
func newService(bus i2c.Bus) *service {
	s := &service{
		bus:      bus,
		requests: make(chan request, 20),
	}
	go func() {
		for req := range s.requests {
			req.response <- s.processTransaction(req)
		}
	}()
	return s
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

/*
// Read the INA219 bus voltage register.
dbus-send --system --print-reply --dest=org.cacophony.i2c /org/cacophony/i2c org.cacophony.i2c.Tx \
byte:0x40 \
array:byte:0x02 \
int32:2 \
int32:100
*/

// Tx queues a transaction and waits for it to finish.
func (s *service) Tx(address byte, write []byte, readLen int, timeout int) ([]byte, *dbus.Error) {
	s.mutex.Lock()
	requestID := s.requestCount
	s.requestCount++
	s.mutex.Unlock()

	responseChan := make(chan response, 1)
	req := request{
		requestTime: time.Now(),
		requestID:   requestID,
		address:     address,
		write:       write,
		readLen:     readLen,
		timeout:     time.Duration(timeout) * time.Millisecond,
		response:    responseChan,
	}
	log.Debugf("Adding request '%d' to the queue", requestID)
	s.requests <- req

	res := <-responseChan
	return res.data, res.err
}

type request struct {
	requestTime time.Time
	requestID   int
	address     byte
	write       []byte
	readLen     int
	timeout     time.Duration
	response    chan response
}

type response struct {
	data []byte
	err  *dbus.Error
}

func (s *service) processTransaction(req request) response {
	startTime := time.Now()
	log.Debugf("Waited %s for request '%d' to be processed.", startTime.Sub(req.requestTime), req.requestID)
	if req.timeout > 0 && startTime.Sub(req.requestTime) > req.timeout {
		log.Infof("Request '%d' timed out in the queue", req.requestID)
		return response{err: dbus.NewError(dbusName+".QueueTimeout", nil)}
	}

	read := make([]byte, req.readLen)
	for i := 0; i <= txRetries; i++ {
		err := s.bus.Tx(uint16(req.address), req.write, read)
		if err == nil {
			log.Debugf("I2C Tx succeeded after %d retries, took %s", i, time.Since(startTime))
			return response{data: read}
		}
		if i < txRetries {
			log.Debugf("I2C Tx failed, retrying %d more times: %s", txRetries-i, err)
			time.Sleep(retryPause)
		}
	}
	log.Errorf("I2C Tx failed. Address 0x%x, Write %v, ReadLen %d", req.address, req.write, req.readLen)
	return response{err: dbus.NewError(dbusName+".ErrorUsingI2CBus", nil)}
}
