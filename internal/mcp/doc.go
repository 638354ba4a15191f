// Package mcp serves the tool registry over the Model Context Protocol.
//
// # Transports
//
//   - stdio: StdioServer wraps the official Go SDK server and is the
//     default for editor and desktop clients that launch the binary.
//   - Streamable HTTP: Server speaks JSON-RPC 2.0 over POST /mcp with
//     Mcp-Session-Id sessions, for clients that connect over the network.
//
// Both forward every tools/call to tools.Registry.Call, so a tool behaves
// identically over either transport.
//
// # Authentication
//
// The HTTP server accepts three credentials, checked in this order:
//
//	/mcp/<launch-token>           // minted at startup, see TokenStore
//	/mcp?token=<launch-token>
//	Authorization: Bearer <token> // JWT or static token, see package auth
//
// The credential is bound to the session at initialize. DELETE /mcp must
// present the same credential to end a session. Sessions idle for longer
// than Config.SessionIdleTimeout are dropped; the next request gets 404 and
// the client re-initializes.
//
// # Client configuration
//
//	{
//	  "mcpServers": {
//	    "quarkdown": {
//	      "url": "http://127.0.0.1:8765/mcp/<launch-token>"
//	    }
//	  }
//	}
package mcp
