// Package tools holds the MCP tools the server exposes and the Registry that
// dispatches calls to them.
//
// Both transports go through Registry.Call, so argument checking, panic
// recovery and call history behave the same over stdio and HTTP. Handlers
// never return protocol errors for tool-level failures: they return a Result
// with IsError set and a single "❌ **Error**:" block.
package tools
