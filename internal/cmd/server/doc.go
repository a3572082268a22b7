// Package serverrun owns the server process lifecycle: storage bring-up,
// logger wiring, HTTP serving, and signal-driven shutdown.
package serverrun
