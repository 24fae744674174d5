package mqtt

import (
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sillyfrog/tesla-mqtt/core/bridge"
	"github.com/sillyfrog/tesla-mqtt/infra/logger"
)

// CommandHandler returns the inbound message handler for the
// {basetopic}/+/set subscription. The setting is the second-to-last topic
// segment. Parsed commands are enqueued; malformed messages are logged and
// dropped. The handler never blocks.
func CommandHandler(queue *bridge.CommandQueue, log logger.Logger) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		parts := strings.Split(msg.Topic(), "/")
		if len(parts) < 2 {
			log.Errorf("unexpected MQTT topic: %s", msg.Topic())
			return
		}
		setting := parts[len(parts)-2]
		payload := string(msg.Payload())
		log.Debugf("incoming MQTT message: %s : %s", setting, payload)

		cmd, err := bridge.ParseCommand(setting, payload)
		if err != nil {
			log.Errorf("dropping MQTT message on %s: %v", msg.Topic(), err)
			return
		}
		queue.Enqueue(cmd)
	}
}
