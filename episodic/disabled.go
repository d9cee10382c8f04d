package episodic

import (
	"context"
	"fmt"
)

// Disabled is the Engine used when no episodic store could be opened.
// Every operation fails with ErrUnavailable wrapped with the reason.
type Disabled struct {
	Reason string
}

func (d Disabled) err() error {
	if d.Reason == "" {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, d.Reason)
}

func (d Disabled) Append(context.Context, Turn) error {
	return d.err()
}

func (d Disabled) Ask(context.Context, string) (string, error) {
	return "", d.err()
}

func (d Disabled) Compress(context.Context) error {
	return d.err()
}

func (Disabled) Available() bool {
	return false
}

func (Disabled) Close() error {
	return nil
}
