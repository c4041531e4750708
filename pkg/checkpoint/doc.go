// Package checkpoint keeps a per-collection journal of fetch runs.
//
// Each collection key has one JSON file holding its most recent runs: when a
// job ran, how many URLs were planned, skipped, fetched and failed, and which
// URLs failed with what error. The fetch cache decides what to download; the
// journal only records what happened, for the status command.
//
// Files live under the configured journal directory, by default:
//   - Linux: ~/.local/share/mediafetch/journal/
//
// and are written atomically so an interrupted save never leaves a torn file.
package checkpoint
