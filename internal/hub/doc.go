// Package hub fans full-fleet snapshots out to subscribers.
//
// A subscriber is any Conn: a WebSocket, an SSE stream or an export writer.
// On subscribe the hub queues an init frame, then every publish tick it takes
// one ListFull copy, serialises it once and queues the same frame for every
// registered subscriber. Each subscriber has its own bounded queue and writer
// goroutine, which also sends the per-connection liveness probe. A failed send
// or probe removes that subscriber only.
package hub
