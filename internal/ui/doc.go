// Package ui implements the live `watch` view using bubbletea's Elm architecture.
//
// The [Model] shows the reconciliation summary, per-loop state, recent progress messages and a list of pinned
// albums and playlists. It is driven by two channels:
//   - a [Notifier] poked from the coordinator's change hook, which triggers a status reload
//   - the coordinator's progress channel, whose updates are appended to a short log
//
// Keys: r refreshes from the catalog, s requests a track pass, ↑/↓ move through the pinned list, q quits.
package ui
