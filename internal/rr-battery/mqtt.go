package battery

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttService       = "RedReactor"
	mqttServiceStatus = "Service"
	mqttServiceData   = "Data"
	mqttOnline        = "ON"
	mqttOffline       = "OFF"
	mqttQoS           = 1
	mqttTimeout       = 5 * time.Second
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// MQTTPublisher sends the status to an MQTT broker under <host>/RedReactor/.
// The retained Service topic is ON while connected and OFF through the last will.
type MQTTPublisher struct {
	client mqttClient
	prefix string
}

func NewMQTTPublisher(broker, host string) (*MQTTPublisher, error) {
	prefix := host + "/" + mqttService
	statusTopic := prefix + "/" + mqttServiceStatus

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("redreactor-"+host).
		SetConnectTimeout(mqttTimeout).
		SetAutoReconnect(true).
		SetWill(statusTopic, mqttOffline, mqttQoS, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Infof("Connected to MQTT broker %s", broker)
		if err := publishOnline(c, statusTopic); err != nil {
			log.Errorf("Failed to publish service status: %v", err)
		}
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		log.Errorf("Lost connection to MQTT broker: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", broker, token.Error())
	}
	return &MQTTPublisher{client: client, prefix: prefix}, nil
}

// publishOnline marks the service ON, replacing the retained last will.
func publishOnline(c mqttClient, statusTopic string) error {
	return waitToken(c.Publish(statusTopic, mqttQoS, true, mqttOnline), statusTopic)
}

func waitToken(token mqtt.Token, topic string) error {
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("timed out publishing %s", topic)
	}
	return token.Error()
}

func (p *MQTTPublisher) Publish(s Status) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.publish(p.prefix+"/"+mqttServiceData, false, payload)
}

func (p *MQTTPublisher) publish(topic string, retained bool, payload interface{}) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker, dropping %s", topic)
	}
	return waitToken(p.client.Publish(topic, mqttQoS, retained, payload), topic)
}

// Close marks the service offline and disconnects.
func (p *MQTTPublisher) Close() error {
	err := p.publish(p.prefix+"/"+mqttServiceStatus, true, mqttOffline)
	p.client.Disconnect(250)
	return err
}
