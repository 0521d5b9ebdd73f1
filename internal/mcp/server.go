package mcp

import (
	"log/slog"
	"net/http"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "reviewgate"

// NewServer creates the SDK server that review tools are registered on.
func NewServer(version string, logger *slog.Logger) *sdkmcp.Server {
	logger.Info("mcp server created", slog.String("version", version))
	return sdkmcp.NewServer(&sdkmcp.Implementation{Name: serverName, Version: version}, nil)
}

// NewHTTPHandler serves s over Streamable HTTP. Stateless mode makes stale
// session IDs after a restart harmless.
func NewHTTPHandler(s *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return s },
		&sdkmcp.StreamableHTTPOptions{Stateless: true},
	)
}
