// Package toolhost launches, supervises, and communicates with external
// tool provider processes over newline-delimited JSON-RPC on stdio.
//
// A Host owns any number of configured servers. Each server is an
// independently failing child process: the host spawns it, runs the
// initialize handshake, discovers the tools it exposes, and then routes
// tool invocations to it with request/response correlation and timeouts.
// One server crashing, hanging, or emitting garbage never affects another.
//
// Basic usage:
//
//	host := toolhost.New()
//	defer host.Close()
//
//	err := host.AddServer(toolhost.ServerConfig{
//		ID:      "files",
//		Command: "file-tool-server",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := host.StartServer(ctx, "files"); err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := host.ExecuteTool(ctx, toolhost.ToolCall{
//		Server:    "files",
//		Tool:      "read_file",
//		Arguments: map[string]any{"path": "notes.txt"},
//	})
//
// Expected failures (unknown server, tool not found, timeouts, crashed
// providers) come back as errors from the taxonomy in this package; check
// them with errors.Is and errors.As.
package toolhost
