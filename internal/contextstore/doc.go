// Package contextstore provides the shared context manager used by audit
// agents to publish and consume intermediate results.
//
// The store is a hierarchical key/value map keyed by slash-delimited paths
// (e.g. "repo/analysis_status/security"). Writes are last-writer-wins and
// bump a per-path version counter. Prefix watches deliver committed writes
// to subscribers as a pull-based stream: a watch on prefix P observes every
// write to P or any path nested under P, in commit order per path, with
// intermediate versions coalesced for slow subscribers. A newly registered
// watch replays the latest value of each existing path under its prefix, so
// a subscriber can never miss state written before it subscribed.
//
// All access goes through Set/Get/GetSubtree/Watch; the store is safe for
// concurrent use and writes to different paths do not block each other.
package contextstore
