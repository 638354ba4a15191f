// Package preview runs the compiler's live preview server for a document.
//
// Start compiles the content to HTML in a private directory, picks a free
// port (the requested one, the next free one within 100, or an ephemeral
// one), launches `start --file <dir> --port <p>` and polls the port until
// the server accepts connections. Each preview is tracked by id until Stop
// or Close terminates the process group and removes the compiled output.
package preview
