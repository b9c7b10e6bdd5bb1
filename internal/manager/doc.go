// Package manager drives an in-browser LLM engine through a bridge channel.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, catalog access.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: LoadState, RunState and Snapshot.
//   - errors.go: error types and helpers (IsNotLoaded, IsBusy, IsEngineUnavailable).
//   - loadfsm.go: the pure load transition function and its effects.
//   - load.go: Select, Load and LoadAndWait; effect application.
//   - dispatch.go: Run, the event loop feeding engine events to the machine.
//   - buffer.go: the chunk FIFO between dispatch and the stream consumer.
//   - complete.go: Complete and Stream, the polling completion consumer.
//   - status_report.go: Status/Snapshot reporting helpers.
//   - events.go, eventpub_*.go: lifecycle events and publishers.
//
// External packages should treat this package as the orchestration layer and use
// public methods only (e.g., New/NewWithConfig, Run, Select, Load, Complete, Status).
package manager
