// Package ui implements the `sync tui` terminal interface using bubbletea's Elm architecture.
//
// The [Model] has two views:
//  1. [SyncingView] : spinner, progress bar and a live list of settled tours
//  2. [ResultView] : totals, the listing error if any and a filterable outcome list
//
// Progress updates flow from the sync engine through a buffered channel and are
// turned into [Msg] values one at a time. Pressing q while syncing cancels the
// run; tours already in flight still settle before the result view appears.
package ui
