// Package gateway serves the MCP Streamable HTTP transport.
//
// # Endpoints
//
//   - POST/DELETE /mcp, /mcp/<launch-token>: MCP JSON-RPC (see package mcp)
//   - GET /health: liveness, always 200
//   - GET /health/ready: 200 when the compiler answers --version, else 503
//   - GET /events[?batch_id=<id>]: server-sent batch progress events
//
// A launch token is minted when the Gateway is created. LaunchURL returns
// the endpoint with the token in the path, which is what `quarkdown-mcp serve
// --http` prints for clients to paste into their configuration.
//
// # Listeners
//
// By default the server listens on server.http_addr. With tailscale.enabled
// it joins the tailnet through tsnet instead and listens on :80, on :443 with
// Tailscale certificates (tailscale.https), or publicly through Funnel
// (tailscale.funnel).
package gateway
