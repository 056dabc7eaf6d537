// Package broker implements the routing and access-control engine: the topic
// registry, the subscription index, and the dispatch loop that fans accepted
// publications out to eligible subscribers over their long-lived connections.
//
// Design decisions:
//   - Dependency injection: a Broker owns explicitly constructed Registry,
//     SubscriptionIndex and event log instances, so several brokers can run
//     in one process (and in one test)
//   - Stable handles: participants are indexed by a numeric handle issued at
//     attach time; membership sets never key on the mutable identity string,
//     which makes an identity rewrite an O(1) metadata update
//   - Coarse per-structure locks: registry and index each take one mutex
//     around any read-modify-write; operation cost is bounded by the
//     subscriber count of a single topic
//   - Decoupled delivery: fan-out enqueues onto a bounded per-connection
//     outbound queue drained by a dedicated writer goroutine; a full queue or
//     a write failure evicts that participant instead of stalling dispatch
package broker
