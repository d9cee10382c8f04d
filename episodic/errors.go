package episodic

import "errors"

// Sentinel errors for episodic engine operations.
var (
	ErrUnavailable     = errors.New("episodic engine unavailable")
	ErrClosed          = errors.New("episodic engine closed")
	ErrUnknownBackend  = errors.New("unknown episodic backend")
	ErrUnknownAnswerer = errors.New("unknown answerer provider")
	ErrStorage         = errors.New("episodic storage failed")
	ErrAnswer          = errors.New("answer generation failed")
)
