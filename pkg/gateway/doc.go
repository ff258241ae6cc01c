// Package gateway serves tools over the Model Context Protocol.
//
// RPCRouter dispatches JSON-RPC 2.0 messages to method handlers, and
// MCPHandler installs initialize, ping, tools/list and tools/call on top of
// a toolexecutor.ToolExecutor. Two transports share the router:
//
//   - StdioServer reads newline-delimited requests from stdin and writes
//     responses to stdout.
//   - Server accepts WebSocket connections on /ws and single requests on
//     /rpc, with optional shared-secret authentication and per-client rate
//     limits. It also exposes /healthz and /metrics.
//
// RemoteClient is the WebSocket client used by the CLI.
package gateway
