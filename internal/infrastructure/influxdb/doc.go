// Package influxdb records valve activity in InfluxDB.
//
// Connect fails fast when the server or the bucket is missing; after that
// every write is queued and batched so valve moves never wait on the
// network.
//
// # Measurements
//
//	valve_moves     tags: site, device_id, component, result   fields: duration_ms, position, label, previous, error
//	valve_position  tags: site, device_id, component           fields: position, label
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	bus.Subscribe("influxdb", client.Sink())
//
// All methods are safe for concurrent use. Write failures are delivered to
// the SetOnError callback.
package influxdb
