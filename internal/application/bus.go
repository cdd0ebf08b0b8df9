package application

import "context"

// DeviceBus publishes control payloads ("<room>:<relay>:<ON|OFF>" or
// "<room>:AUDIO:<id>") to the device network.
type DeviceBus interface {
	Publish(ctx context.Context, payload string) error
}
