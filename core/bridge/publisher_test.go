package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sillyfrog/tesla-mqtt/infra/logger"
)

type recordedMessage struct {
	Topic   string
	Payload string
}

// fakePublisher records outbound publishes for assertions.
type fakePublisher struct {
	messages []recordedMessage
	err      error
}

func (f *fakePublisher) Publish(topic, payload string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, recordedMessage{Topic: topic, Payload: payload})
	return nil
}

func (f *fakePublisher) payloads(topic string) []string {
	var out []string
	for _, m := range f.messages {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

func TestChangePublisher_FirstWriteAlwaysPublishes(t *testing.T) {
	pub := &fakePublisher{}
	p := NewChangePublisher(pub, "tesla/car", logger.NopLogger{})

	require.NoError(t, p.PublishIfChanged("battery_level", "80"))
	assert.Equal(t, []recordedMessage{{Topic: "tesla/car/battery_level", Payload: "80"}}, pub.messages)
}

func TestChangePublisher_SuppressesUnchanged(t *testing.T) {
	pub := &fakePublisher{}
	p := NewChangePublisher(pub, "tesla/car", logger.NopLogger{})

	for i := 0; i < 5; i++ {
		require.NoError(t, p.PublishIfChanged("charging", "Charging"))
	}
	assert.Len(t, pub.messages, 1)
}

func TestChangePublisher_PublishesChanges(t *testing.T) {
	pub := &fakePublisher{}
	p := NewChangePublisher(pub, "tesla/car", logger.NopLogger{})

	require.NoError(t, p.PublishIfChanged("charging", "Charging"))
	require.NoError(t, p.PublishIfChanged("charging", "Complete"))
	require.NoError(t, p.PublishIfChanged("charging", "Charging"))
	assert.Equal(t, []string{"Charging", "Complete", "Charging"},
		pub.payloads("tesla/car/charging"))
}

func TestChangePublisher_KeysAreIndependent(t *testing.T) {
	pub := &fakePublisher{}
	p := NewChangePublisher(pub, "tesla/car", logger.NopLogger{})

	require.NoError(t, p.PublishIfChanged("battery_level", "80"))
	require.NoError(t, p.PublishIfChanged("charge_limit", "80"))
	assert.Len(t, pub.messages, 2)
}

func TestChangePublisher_FailedPublishNotRecorded(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	p := NewChangePublisher(pub, "tesla/car", logger.NopLogger{})

	assert.Error(t, p.PublishIfChanged("charging", "Charging"))

	// After the broker recovers the same value publishes.
	pub.err = nil
	require.NoError(t, p.PublishIfChanged("charging", "Charging"))
	assert.Len(t, pub.messages, 1)
}
