// Package orchestrator coordinates the audit agents of a single analysis
// run. It holds the agent registry and the declared dependency graph, drives
// execution so that an agent starts only after its predecessors reached a
// terminal state and its required context paths are populated, runs
// independent agents concurrently under a configurable bound, and aggregates
// the final run result.
//
// Each agent's RunState is owned exclusively by the orchestrator's
// scheduling loop; agents influence scheduling only indirectly, through
// context writes and task return values. Alongside the internal state
// machine the orchestrator maintains the purely observational context
// convention "<run>/analysis_status/<agent>" for external consumers, and
// publishes a lifecycle broadcast on "agent/<name>/status" whenever an agent
// reaches a terminal state.
package orchestrator
