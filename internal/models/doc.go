// Package models defines the domain entities of the offline reconciliation engine.
//
// The package contains two categories of types:
//
// 1. Catalog values: plain structs describing what the streaming service returns
//   - [Track] : a downloadable item, identified by ID
//   - [Album] : a fixed group of tracks
//   - [Playlist] : a mutable, user-curated group of tracks
//
// 2. Persistent Entities: database-backed models with their own table
//   - [Pass] : one run of a reconciliation loop with its outcome counts
//
// Persistent entities implement the Model interface and are stored through a Repository[T].
package models
