package mqtt

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/pupsensor/pkg/device"
	"github.com/robotalks/pupsensor/pkg/link"
	"github.com/robotalks/pupsensor/pkg/msgs"
)

// Topics under <prefix><id>/.
const (
	TopicStatus = "status"
	TopicEvents = "events"
	TopicData   = "data"
	TopicSet    = "set"
)

// Publisher reports the sensor over MQTT and applies remote commands.
// It implements link.EventHandler and link.StateNotifier.
type Publisher struct {
	Queue  *Queue
	Device *device.Device
	ID     string

	lock  sync.Mutex
	state link.State
}

// NewPublisher creates a Publisher connecting to brokerURL.
func NewPublisher(brokerURL, id string, dev *device.Device) (*Publisher, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+id+"/"+TopicStatus, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("pupsensor:" + id)
	}
	p := &Publisher{
		Queue:  NewQueue(opts, topicPrefix),
		Device: dev,
		ID:     id,
	}
	p.Queue.OnConnect = func(*Queue) { p.publishStatus() }
	return p, nil
}

// Name implements framework.Named.
func (p *Publisher) Name() string {
	return "mqtt"
}

// Topic returns the full topic (without prefix) of sub.
func (p *Publisher) Topic(sub string) string {
	return p.ID + "/" + sub
}

// Subscribe registers the command handler.
func (p *Publisher) Subscribe() *Subscription {
	return p.Queue.Sub(p.Topic(TopicSet), p.handleSet)
}

// Run implements Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	p.Subscribe()
	token := p.Queue.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			glog.Errorf("mqtt connect error: %v", token.Error())
		}
	}()
	<-ctx.Done()
	p.Queue.PubWith(p.Topic(TopicStatus), nil, 1, true)
	p.Queue.Close()
	return nil
}

// HandleEvent implements link.EventHandler.
func (p *Publisher) HandleEvent(ctx context.Context, evt link.Event) {
	p.publish(TopicEvents, msgs.NewEvent(evt), false)
	if evt.Kind == link.EventModeDataWritten {
		if m := p.Device.Mode(evt.Mode); m != nil {
			p.publish(TopicData, msgs.NewModeData(m), false)
		}
	}
}

// StateChanged implements link.StateNotifier.
func (p *Publisher) StateChanged(ctx context.Context, state link.State) {
	p.lock.Lock()
	p.state = state
	p.lock.Unlock()
	p.publishStatus()
}

func (p *Publisher) publishStatus() {
	p.lock.Lock()
	state := p.state
	p.lock.Unlock()
	p.publish(TopicStatus, msgs.NewStatus(p.Device.Snapshot(), state), true)
}

func (p *Publisher) publish(topic string, msg msgs.SerializableMessage, retain bool) {
	data, err := msgs.Encode(msg)
	if err != nil {
		glog.Errorf("encode %s error: %v", topic, err)
		return
	}
	var qos byte
	if retain {
		qos = 1
	}
	p.Queue.PubWith(p.Topic(topic), data, qos, retain)
}

func (p *Publisher) handleSet(topic string, payload []byte) {
	msg, err := msgs.Decode(payload)
	if err != nil {
		glog.Warningf("invalid command on %q: %v", topic, err)
		return
	}
	cmd, ok := msg.(msgs.Command)
	if !ok {
		glog.Warningf("not a command on %q: %T", topic, msg)
		return
	}
	if !cmd.Apply(p.Device) {
		glog.Warningf("command rejected: %v", cmd)
		return
	}
	glog.V(2).Infof("command applied: %v", cmd)
	if _, ok := cmd.(*msgs.SelectMode); ok {
		p.publishStatus()
	}
}
