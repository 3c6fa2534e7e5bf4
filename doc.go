// Package simucore is a reactive component framework for embedded and
// real-time control applications.
//
// A process owns one tree of components. Components expose typed signals that
// can be wired output to input, are executed on a fixed tick, and are
// mirrored live to remote observers over a WebSocket channel that also
// accepts value changes back.
//
// # Architecture
//
//	cmd/simucore      CLI, logger setup, demo plant
//	engine            tick loop, mutation queue, inbound protocol
//	  ├─ component    owned tree, identities, lifecycle walk
//	  ├─ signal       Signal[T], roles, binding, string conversion
//	  ├─ registry     identity → signal index
//	  ├─ snapshot     tree → JSON document
//	  └─ websocket    RFC6455 handshake and framing over raw TCP
//
// Ambient packages: errors (classified errors), metric (Prometheus registry
// and /metrics server), health (status monitor), config (JSON/YAML loading),
// pkg/retry (backoff) and pkg/buffer (bounded queue).
//
// # Threading
//
// Signals are only mutated by the tick goroutine. Observer writes arrive on
// connection goroutines and are queued; the next tick applies them before the
// tree executes. The tree lock is held while executing and while
// serializing, so a snapshot never observes a half-executed tick.
//
// # Non-goals
//
// SimuCore is not a pub/sub broker, keeps no signal history and does not
// distribute a tree across processes.
package simucore
