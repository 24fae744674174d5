package bridge

import (
	"github.com/sillyfrog/tesla-mqtt/core/logger"
)

// Publisher is the outbound MQTT boundary.
type Publisher interface {
	Publish(topic, payload string) error
}

// ChangePublisher publishes values under {basetopic}/<key>, suppressing
// publishes for values that have not changed since the last publish. It is
// the sole gate on publish volume.
type ChangePublisher struct {
	pub       Publisher
	baseTopic string
	log       logger.Logger
	last      map[string]string
}

// NewChangePublisher creates a ChangePublisher rooted at baseTopic.
func NewChangePublisher(pub Publisher, baseTopic string, log logger.Logger) *ChangePublisher {
	return &ChangePublisher{
		pub:       pub,
		baseTopic: baseTopic,
		log:       log,
		last:      make(map[string]string),
	}
}

// PublishIfChanged publishes value under key unless it equals the last
// published value for that key. The first write for a key always publishes.
// A failed publish is not recorded, so the value is retried on the next
// changed or identical cycle.
func (p *ChangePublisher) PublishIfChanged(key, value string) error {
	if prev, ok := p.last[key]; ok && prev == value {
		return nil
	}
	topic := p.baseTopic + "/" + key
	if err := p.pub.Publish(topic, value); err != nil {
		return err
	}
	p.log.Debugf("published %s = %s", topic, value)
	p.last[key] = value
	return nil
}
