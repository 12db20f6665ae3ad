// Package mqtt connects BenchLink Core to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - The valve bridge: events out, move commands in
//
// # Topics
//
//	benchlink/state/{device}/{component}    retained rotor state
//	benchlink/event/{device}/{component}    every position event
//	benchlink/command/{device}/{component}  move commands (label or connect/disconnect)
//	benchlink/ack/{device}/{component}      command results
//	benchlink/system/status                 online/offline (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	bridge := mqtt.NewBridge(client, client.QoS())
//	bus.Subscribe("mqtt", bridge)
//	if err := bridge.ServeCommands(client, registry); err != nil {
//	    return err
//	}
//
// # Security Considerations
//
//   - Enable broker.tls outside the lab network
//   - Anyone who can publish on benchlink/command/# can move valves; restrict
//     it with broker ACLs
package mqtt
