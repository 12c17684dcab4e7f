package battery

import (
	"encoding/json"
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"
)

const (
	dbusName = "org.cacophony.RedReactor"
	dbusPath = "/org/cacophony/RedReactor"
)

// DBusPublisher keeps the latest status for the Status method and emits a
// Battery signal with the voltage and capacity on every report.
type DBusPublisher struct {
	conn *dbus.Conn

	mu     sync.Mutex
	status Status
}

// redReactorService is the object exported on the bus.
type redReactorService struct {
	p *DBusPublisher
}

func startService() (*DBusPublisher, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, errors.New("name already taken")
	}

	p := &DBusPublisher{conn: conn}
	s := &redReactorService{p: p}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return p, nil
}

func (p *DBusPublisher) Publish(s Status) error {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
	return p.conn.Emit(dbusPath, dbusName+".Battery", s.AvgVoltage, float64(s.Capacity))
}

func (p *DBusPublisher) latest() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Status returns the last reported status as JSON.
func (s redReactorService) Status() (string, *dbus.Error) {
	data, err := json.Marshal(s.p.latest())
	if err != nil {
		return "", dbusErr(err)
	}
	return string(data), nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
			Signals: []introspect.Signal{{
				Name: "Battery",
				Args: []introspect.Arg{
					{Name: "voltage", Type: "d"},
					{Name: "capacity", Type: "d"},
				},
			}},
		}},
	}
	return introspect.NewIntrospectable(node)
}

func dbusErr(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return &dbus.Error{
		Name: dbusName + "." + getCallerName(),
		Body: []interface{}{err.Error()},
	}
}

func getCallerName() string {
	fpcs := make([]uintptr, 1)
	n := runtime.Callers(3, fpcs)
	if n == 0 {
		return ""
	}
	caller := runtime.FuncForPC(fpcs[0] - 1)
	if caller == nil {
		return ""
	}
	funcNames := strings.Split(caller.Name(), ".")
	return funcNames[len(funcNames)-1]
}
