package ingest

import "context"

// Source delivers raw report payloads from an upstream broker. Run blocks until
// ctx is done, reconnecting on its own when the broker goes away.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- []byte) error
	Connected() bool
}
