package codec

import (
	"errors"
	"fmt"
)

// ErrShortFrame is matched by every *FrameError.
var ErrShortFrame = errors.New("short frame")

// FrameError reports a payload shorter than the decoder needs.
type FrameError struct {
	Kind   string
	Need   int
	Actual int
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s: need %d bytes, got %d", e.Kind, e.Need, e.Actual)
}

func (e *FrameError) Is(target error) bool {
	return target == ErrShortFrame
}

func need(kind string, data []byte, n int) error {
	if len(data) < n {
		return &FrameError{Kind: kind, Need: n, Actual: len(data)}
	}
	return nil
}
