// Package ttp implements timed trace points: a low-overhead recorder for
// "event X happened at time T".
//
// A Tracer owns one fixed-capacity, append-only event store per execution
// context. Call sites record through a Handle bound to exactly one store,
// so the hot path never takes a lock and never touches another context's
// memory. An operator drives the control plane (Arm, Disarm, Reset,
// SetClock) and drains the stores with an export Session while recording
// is disarmed.
//
// # State machine
//
//	Disarmed --Arm--> Armed --Disarm--> Disarmed
//
// Reset and SetClock are only legal while disarmed. Exports are only legal
// while disarmed. Every control operation and every export step holds the
// tracer's mutex for O(1) work (O(contexts) for Reset and Stats); none of
// them iterate over recorded events while holding it.
//
// # Hot path
//
// Handle.Emit checks the armed flag and the clock selection, reads the
// clock, and appends to its store: the event is written first, then the
// new length is published with an atomic store. A reader that loads the
// length therefore never observes a slot that is not fully written.
//
// A full store drops the event. The first drop of an overflow episode
// produces one warning and bumps the tracer-wide overflow notice counter;
// subsequent drops only bump the store's dropped counter. An episode ends
// at Reset.
//
// # Ordering
//
// Disarm is not a barrier. Emits that passed the armed check before Disarm
// took effect may still complete their append afterwards, so an export
// taken right after Disarm is a close snapshot, not an exact one.
//
// # Handles
//
// A Handle must be used by at most one goroutine at a time. The tracer
// cannot detect two goroutines writing through the same handle; doing so
// breaks the single-writer assumption the store relies on.
package ttp
