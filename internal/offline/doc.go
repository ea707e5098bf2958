// Package offline owns the desired offline state and the directory that mirrors it.
//
// [Store] keeps reference counts for every track that must be available without a network, together with the
// reasons behind them (favorites, pinned albums, pinned playlists, explicit adds). [Disk] answers which tracks are
// physically present. Reconciling the two is the job of the loops in package tasks.
package offline
