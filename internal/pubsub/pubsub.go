package pubsub

import (
	"fmt"
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	clientID = "go-tracker"

	TopicEvents   = "EVENTS/tracker"
	TopicEventGPS = "EVENTS/gps"
)

// PubSub publishes tracker events to the local broker. Fire and forget:
// a broker that is down costs a log line per publish, never the loop.
type PubSub struct {
	client mqtt.Client
}

func New(broker string) *PubSub {
	opt := mqtt.NewClientOptions().AddBroker(broker)
	opt.SetAutoReconnect(true)
	opt.SetClientID(fmt.Sprintf("%s-%d", clientID, time.Now().Unix()))
	opt.SetKeepAlive(30 * time.Second)
	opt.SetConnectRetryInterval(10 * time.Second)
	return &PubSub{client: mqtt.NewClient(opt)}
}

func (ps *PubSub) Connect() error {
	tk := ps.client.Connect()
	if !tk.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("connect wait error")
	}
	if err := tk.Error(); err != nil {
		return err
	}
	return nil
}

// Publish pushes msg to topic, waiting briefly for the broker ack.
func (ps *PubSub) Publish(topic string, msg []byte) {
	tk := ps.client.Publish(topic, 0, false, msg)
	if !tk.WaitTimeout(3 * time.Second) {
		if tk.Error() != nil {
			logs.LogError.Printf("publish error: %s, topic -> %q", tk.Error(), topic)
		} else {
			logs.LogError.Printf("publish timeout, topic -> %q", topic)
		}
	}
}

func (ps *PubSub) Disconnect() {
	ps.client.Disconnect(600)
}
