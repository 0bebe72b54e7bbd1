// Package fireblade runs one operation across a fleet of Junos switches.
//
// A RunRequest names the devices and the operation. The Runner resolves
// credentials once and hands a Driver to the Orchestrator, which works on
// at most Concurrency devices at a time. For each device the Driver opens
// a session, applies the campus/role/model gate, dispatches the Task and
// closes the session; every failure becomes an outcome.Outcome. Outcomes
// flow through one collector goroutine into the Report and the configured
// Sinks.
package fireblade
