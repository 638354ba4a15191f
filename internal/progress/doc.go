// Package progress fans batch progress events out to live listeners.
//
// The batch engine reports through Broadcaster.Observer; the HTTP gateway
// subscribes per request and streams the events as server-sent events.
package progress
