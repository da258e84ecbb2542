// Package httpapi is the route layer of fleetd.
//
// # Routes
//
//	POST  /api/auth/register       201 {user, tokens}
//	POST  /api/auth/login          200 {user, tokens}
//	POST  /api/auth/refresh-token  200 {access, refresh}
//	POST  /api/auth/logout         204
//	GET   /api/devices             tenant list, X-Cache: HIT|MISS
//	POST  /api/devices             201 device
//	GET   /api/devices/{id}        one device, X-Cache: HIT|MISS
//	PATCH /api/devices/{id}        200 device
//	GET   /ws?token=               real-time channel
//	GET   /health                  200 UP or 503 DOWN
//	GET   /metrics                 Prometheus text exposition
//
// Error bodies are {"code": <status>, "message": "..."}. Sentinel errors from
// goFleet map onto status codes in one place, [StatusFor].
//
// # What this package must NOT do
//
//   - Talk to stores directly. Reads and writes go through device.Service and
//     goFleet.Engine.
//   - Echo store or signing errors to clients.
package httpapi
