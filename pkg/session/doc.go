// Package session multiplexes long-lived child processes behind a stable
// id space, so an interactive program (a netcat listener, an SSH session)
// can keep running and accumulating output while the agent loop does other
// work.
//
// Invariants:
// - Session ids are opaque and generated at creation.
// - Output append and state transitions are atomic per session.
// - Exited sessions stay queryable for a retention window, then are evicted.
//
// Usage:
//
//	mgr := session.NewManager(session.Config{})
//	id, _ := mgr.Create("nc -lvnp 4444")
//	chunk, _ := mgr.Output(id, 0)
//	_ = mgr.Input(id, "whoami\n")
//	_ = mgr.Kill(id)
package session
