// Package server exposes a broker over websocket.
//
// The server owns the HTTP listener and the upgrade handshake; everything
// after the upgrade belongs to the broker. Each accepted socket is wrapped in
// an adapter that serializes writes, enforces write deadlines, and keeps the
// connection alive with pings, so the broker never has to know it is talking
// to a websocket.
package server
