// Command toolhost-ping is a minimal tool provider used to exercise the
// host end to end. It speaks the stdio protocol via the official MCP SDK
// and exposes a single "ping" tool that echoes its message back.
//
// Try it:
//
//	servers:
//	  ping:
//	    command: toolhost-ping
//
//	toolhost call ping ping '{"message":"hello"}'
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type pingInput struct {
	Message string `json:"message,omitempty" jsonschema:"message to echo back"`
}

type pingOutput struct {
	Reply string `json:"reply"`
}

func ping(_ context.Context, _ *mcp.CallToolRequest, in pingInput) (*mcp.CallToolResult, pingOutput, error) {
	msg := in.Message
	if msg == "" {
		msg = "pong"
	}

	return nil, pingOutput{Reply: msg}, nil
}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "toolhost-ping",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Echo a message back to the caller",
	}, ping)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal(fmt.Errorf("serve: %w", err))
	}
}
