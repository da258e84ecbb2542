// Package realtime serves the websocket endpoint that carries tenant events
// to clients.
//
// The access token arrives as the token query parameter. The handshake always
// upgrades; an unauthenticated connection is then closed with code 1008 and a
// short reason. Authenticated connections are registered in a
// broadcast.Registry, greeted with CONNECTION_SUCCESS, and may send HEARTBEAT
// frames that are relayed to their tenant as DEVICE_HEARTBEAT.
package realtime
