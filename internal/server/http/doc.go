// Package httpserver serves the broker's JSON API: topic append/read/trim,
// SSE subscriptions, consumer group claim/ack, locks, and rate limiting.
// Mutating endpoints sit behind an instance-wide token bucket.
package httpserver
