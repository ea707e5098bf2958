// Package tasks runs the reconciliation loops that keep the offline directory in step with what the user asked for.
//
// # Loops
//
// Every loop is a [Loop]: one long-lived worker that runs a pass function. Requests made while a pass is running
// collapse into a single rerun, so a burst of requests costs at most two passes.
//
//  1. [TrackSync] : deletes files nobody wants, then downloads desired tracks that are missing
//  2. [FavoritesSync] : fetches the favorites and moves reference counts by the difference from the last snapshot
//  3. [PlaylistSync] : does the same for every queued playlist, releasing unpinned ones
//  4. [AlbumSync] : fetches the tracks of newly pinned albums once
//
// The catalog loops never touch the disk. They update the [offline.Store] and request a track pass.
//
// # Coordinator
//
// [Coordinator] owns the loops and their queues. Its methods are cheap: they mutate the store and request work.
// [Coordinator.Start] runs the workers; [Coordinator.WaitIdle] blocks until all of them are idle at once.
//
// # Progress Reporting
//
// Loops publish [ProgressUpdate]s on an optional channel. Sends use select with default, so a slow reader loses
// updates instead of stalling a pass.
package tasks
