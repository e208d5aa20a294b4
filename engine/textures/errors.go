package textures

import "errors"

var (
	ErrPoolExhausted = errors.New("load task pool exhausted")
	ErrLoaderClosed  = errors.New("texture loader closed")
	ErrInvalidShape  = errors.New("invalid texture shape")
	ErrTasksInFlight = errors.New("load tasks still in flight")
	ErrNilTexture    = errors.New("nil texture")
)
