package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// ClientName is the connection name reported to the NATS server.
const ClientName = "conductor"

// NewClient connects to the server in NATS_URL, or the default local server
// when it is unset. Without options the connection is named ClientName and
// compressed.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name(ClientName), nats.Compression(true))
	}
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	return nats.Connect(url, opts...)
}
