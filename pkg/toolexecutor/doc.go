// Package toolexecutor holds the registry of tools exposed over MCP and runs
// them with JSON Schema validation, a per-call timeout, output truncation,
// metrics and a span per call.
//
// Parameters are declared once as []ToolParameter; BuildInputSchema turns
// them into the inputSchema advertised by tools/list, and the same schema
// rejects unknown or mistyped arguments before a handler runs. Failures
// never escape as Go errors from Execute: they come back as a ToolResult
// with Success false and Metadata["error_type"] set to one of the
// ErrorType constants, or to whatever a TypedError handler error reports.
package toolexecutor
