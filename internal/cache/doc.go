// Package cache provides a small in-memory TTL cache.
//
// The compiler adapter stores the output of `--help`, `--version` and
// `formats` here: those answers only change when the compiler binary does, and
// each lookup otherwise costs a JVM start.
//
//	c := cache.New(10*time.Minute, 64)
//	defer c.Close()
//	v, err := c.GetOrLoad("version", loadVersion)
package cache
