// Package progress delivers the intermediate updates of a running task to the
// observers subscribed to it.
package progress
