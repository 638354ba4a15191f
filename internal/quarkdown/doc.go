// Package quarkdown adapts document operations onto the quarkdown CLI.
//
// A Compiler owns no process state: every operation writes its own temporary
// input, runs one invocation through a process.Invoker and reads the result
// back. Compiler failures (nonzero exits, missing output, error markers in the
// rendered document) are returned as data on the result types, so callers can
// report them without unwrapping errors.
//
//	comp, err := quarkdown.New(quarkdown.Options{Settings: s, Invoker: inv})
//	res := comp.Compile(ctx, quarkdown.CompileRequest{Content: src, Format: "html"})
//	if !res.Success {
//		// res.Errors explains why
//	}
//
// Help, Version and Formats never fail; they fall back to fixed answers and
// cache successful ones when a cache is configured.
package quarkdown
