// Package device is the reference tenant resource: a small device record,
// its stores, and the service that keeps the response cache and live
// clients in step with writes.
//
// Every write follows the same order: store, invalidate the tenant's
// /api/devices entries, broadcast, return.
package device
