// Package manager owns model sessions: loading, admission and release. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: session state types (State, Session).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, ...).
//   - load.go: Load/LoadModel with shared in-flight allocation per id.
//   - queue_admission.go: per-session queueing and generation admission (Acquire).
//   - unload.go: Unload/UnloadModel drain and release, Cleanup.
//   - status_report.go: Status reporting.
//   - events.go, eventpub_memory.go: lifecycle event publishers.
//   - metrics.go: Prometheus collectors.
//
// External packages should treat this package as the orchestration layer and
// use public methods only. Session internals are subject to change.
package manager
