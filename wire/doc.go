// Package wire defines the JSON frame vocabulary spoken between the broker
// and its participants. Inbound frames form a closed tagged union: anything
// that does not parse into a known variant is rejected at decode time rather
// than carried around as a dynamic payload.
//
// Design decisions:
//   - Sum type over message kinds: the frame type tag selects a concrete Go
//     struct, so dispatch code switches on types instead of inspecting maps
//   - Decode never trusts the client-supplied sender field; identity is
//     attached server-side after authentication
//   - Publication payloads stay as raw JSON; the broker routes them without
//     interpreting their shape
//   - Custom unmarshaling with gjson keeps malformed input errors precise
//     without allocating intermediate maps
//
// Frame hierarchy:
//   - Frame: closed interface over client-to-server messages
//     ├── Identify: claim an identity (with optional admin secret)
//     ├── CreateTopic: register or overwrite a topic definition
//     ├── AddPermission: grant a participant access to a private topic
//     ├── Subscribe: join a topic (or "*" for the wildcard feed)
//     ├── Publish: send a payload to a topic
//     ├── GetState: request a live snapshot of topics and participants
//     └── GetHistory: request a bounded replay of the event log
//
// Server-to-client envelopes are System (welcome, acks, snapshots), Message
// (a fanned-out publication) and Error (permission denials and the like).
package wire
