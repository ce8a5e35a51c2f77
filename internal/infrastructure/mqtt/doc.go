// Package mqtt provides MQTT client connectivity for myhomed.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// MQTT is the producer transport: home automation services publish actions
// on myhome/action/submit and receive acknowledgements on
// myhome/action/ack/{id}. The dispatch core itself never touches MQTT.
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.ActionSubmit(), 1,
//	    func(topic string, payload []byte) error {
//	        return intake.Handle(payload)
//	    })
package mqtt
