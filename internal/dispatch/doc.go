// Package dispatch is the publish path: durable append through the topic log
// plus best-effort fan-out to in-process subscriptions. Subscriptions are
// ephemeral; durable delivery goes through consumer groups instead.
package dispatch
