package application

import (
	"context"
	"errors"
)

const (
	DeviceDocument = "device_config"
	ModeDocument   = "modes"
)

var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore loads and saves whole JSON documents by key. Load returns
// ErrDocumentNotFound when nothing was saved under key yet.
type DocumentStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, doc []byte) error
}
