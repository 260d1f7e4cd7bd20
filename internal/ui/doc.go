// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for running a sync:
//  1. [LoadingView] : Authenticate and fetch the source lists
//  2. [ListView] : Browse top-level source lists and pick one, or all of them
//  3. [ConfirmView] : Confirm the sync
//  4. [SyncView] : Monitor real-time progress updates with per-list results
//  5. [ResultView] : Display the run summary and failed lists
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the sync engine, providing non-blocking status reporting during a run.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, a, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
