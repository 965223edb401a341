package protocol

import (
	"context"
	"io"

	"go.lsp.dev/jsonrpc2"
)

// Transport wraps a go.lsp.dev/jsonrpc2 connection over a stdio-shaped
// stream. The core is a notification sender only: it never needs to answer
// client-initiated requests itself (those are handled by the external
// language-server-surface collaborator spec.md §1 describes), so Transport
// exposes only Notify plus Close and Done for the connection's lifetime.
type Transport struct {
	conn jsonrpc2.Conn
}

// NewStdioTransport builds a Transport over rwc (typically os.Stdin paired
// with a writer that is NOT os.Stdout — see cmd/enginehost, which writes
// the JSON-RPC stream to stderr and leaves stdout to REPL host output).
func NewStdioTransport(rwc io.ReadWriteCloser) *Transport {
	stream := jsonrpc2.NewStream(rwc)
	conn := jsonrpc2.NewConn(stream)
	return &Transport{conn: conn}
}

// Notify sends one of the notification methods in this package with params
// as its body.
func (t *Transport) Notify(ctx context.Context, method Method, params interface{}) error {
	return t.conn.Notify(ctx, string(method), params)
}

// Close closes the underlying connection.
func (t *Transport) Close() error { return t.conn.Close() }

// Done reports when the connection has finished (peer closed, or Close
// called).
func (t *Transport) Done() <-chan struct{} { return t.conn.Done() }
