// Package engine runs a SimuCore application: one component tree, its signal
// registry and the transport that streams snapshots to observers.
//
// # Overview
//
// An Application owns everything a running simulation needs. Construction
// wires the collaborators; Init runs the one-time setup; Run drives the tick
// loop until the context is cancelled or the configured iteration budget is
// spent.
//
//	┌──────────────┐  text frames   ┌──────────────────┐
//	│  observers   │ ─────────────> │ websocket.Server │
//	│  (browsers)  │ <───────────── │  (Transport)     │
//	└──────────────┘   snapshots    └────────┬─────────┘
//	                                         │ ParseMessage
//	                                         ▼
//	                                ┌──────────────────┐
//	                                │  mutation queue  │ pkg/buffer, drop newest
//	                                └────────┬─────────┘
//	                                         │ drained by the tick goroutine
//	                                         ▼
//	        ┌────────────────────────── Tick ──────────────────────────┐
//	        │ apply mutations → HAL.Update → ExecuteAll → snapshot     │
//	        │ → broadcast → Ticker.Wait                                │
//	        └──────────────────────────────────────────────────────────┘
//
// # Concurrency
//
// Only the tick goroutine mutates signals. Connection goroutines parse
// inbound messages and enqueue them; the on-connect snapshot takes the same
// lock the tick holds while executing and serializing, so observers never see
// a half-executed tree.
//
// # Inbound protocol
//
//	{"command": "UPDATE_PARAMETERS", "parameters": [{"id": 3060114135, "value": "1.5"}]}
//
// UPDATE_PARAMETERS addresses parameters and UPDATE_PHYSICAL_SIGNALS addresses
// physical inputs and outputs. Documents are validated against a JSON schema
// before routing; invalid ones are logged and dropped. When
// message_rate_limit is set, a token bucket shared by all observers admits
// messages before parsing.
package engine
