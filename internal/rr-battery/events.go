package battery

import (
	"time"

	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
)

const (
	eventBatteryEmpty  = "rrBatteryEmpty"
	eventChargeCycle   = "rrChargeCycleComplete"
	eventSensorFailure = "rrSensorFailure"
)

var addEvent = eventclient.AddEvent

func reportEvent(eventType string, details map[string]interface{}) {
	err := addEvent(eventclient.Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Details:   details,
	})
	if err != nil {
		log.Errorf("Error adding '%s' event: %v", eventType, err)
	}
}
