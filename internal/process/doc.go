// Package process runs the external quarkdown compiler.
//
// An Invocation is an argument vector (never a shell string), optional stdin
// and optional working directory. ExecInvoker runs it through os/exec with the
// configured timeout, text encoding and, for .jar compilers, the java launcher.
//
// Failure to launch or finish a process is reported as a *Error wrapping
// ErrTimeout, ErrExecutableNotFound or ErrExecution. A process that runs and
// exits nonzero is not an error: its exit code is part of the Result.
//
// On unix the child runs in its own process group, so a timeout or Stop kills
// the JVM and anything it forked.
//
// FakeInvoker is a scriptable Invoker for tests in other packages.
package process
