// Package device provides the device registry for BenchLink.
//
// A device is one physical instrument (a valve actuator, a manifold of
// valves) reached over one transport. Each device exposes named components,
// and each component implements the capability interfaces it supports:
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                            Registry                               │
//	│  register ─▶ validate descriptor ─▶ derive capability tags        │
//	│                                                                   │
//	│  ┌────────────────────┐      ┌──────────────────────────────┐    │
//	│  │ Device             │ 1..n │ Component                     │    │
//	│  │ • Descriptor()     │─────▶│ • PositionReader              │    │
//	│  │ • Connect / Close  │      │ • PositionSetter              │    │
//	│  └────────────────────┘      │ • ConnectionLister            │    │
//	│                              │ • PositionSelector            │    │
//	│                              └──────────────────────────────┘    │
//	└──────────────────────────────────────────────────────────────────┘
//	               │ events
//	               ▼
//	┌──────────────────────────────────────────────────────────────────┐
//	│ Bus ─▶ history (SQLite) · MQTT · InfluxDB · WebSocket · metrics   │
//	└──────────────────────────────────────────────────────────────────┘
//
// Capability tags in a Descriptor are always derived from the interfaces a
// component implements, so the HTTP route table and the descriptor can
// never disagree.
//
// # Usage
//
//	reg := device.NewRegistry()
//	reg.SetLogger(log)
//	if err := reg.Register(dev); err != nil {
//	    return err
//	}
//	defer reg.Close()
//
//	c, err := reg.Component("hplc-1", "injector")
//	if setter, ok := c.(device.PositionSetter); ok {
//	    label, err := setter.SetPosition(ctx, req)
//	}
//
// # Thread Safety
//
// Registry and Bus are safe for concurrent use. Components serialise their
// own transport access.
package device
