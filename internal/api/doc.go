// Package api implements the HTTP REST API and WebSocket server for BenchLink Core.
//
// This package provides:
//   - Component routes generated from a static (capability, operation) table
//   - Device, model catalog, history and metrics endpoints
//   - A WebSocket hub that fans position events out to subscribers
//   - Optional JWT bearer authentication with role permissions
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Component Routes
//
// Every registered component gets only the routes its capabilities allow:
//
//	GET /api/v1/devices/{device}/{component}/position          PositionReader
//	PUT /api/v1/devices/{device}/{component}/position?connect=a,b&disconnect=a,b&ambiguous_switching
//	                                                            PositionSetter
//	PUT /api/v1/devices/{device}/{component}/position/{label}  PositionSelector
//	GET /api/v1/devices/{device}/{component}/connections       ConnectionLister
//	GET /api/v1/devices/{device}/{component}/history           every component
//
// Routes are expanded from the registry when the router is built, so
// devices must be registered before Start.
//
// # Errors
//
// Domain errors map onto a JSON body {status, code, message, details}:
// invalid requests are 400, unreachable and ambiguous connections 409
// (ambiguous details list the candidate labels), unlabeled positions 500
// and device communication failures 502.
//
// # WebSocket
//
// Clients subscribe to an event type ("position_changed"), a device
// ("device:hplc"), a single valve ("component:hplc/inject") or everything
// ("*"). Unknown channels are rejected. A client that cannot keep up loses
// events; the count is reported under websocket.dropped_messages in
// /api/v1/metrics.
package api
