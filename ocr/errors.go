package ocr

import "errors"

var (
	// ErrModelUnavailable indicates the provider is installed but has no
	// trained language data to recognize with.
	ErrModelUnavailable = errors.New("ocr model unavailable")

	// ErrMissingDependency indicates the provider's native stack is not
	// installed on this system.
	ErrMissingDependency = errors.New("ocr dependency missing")

	// ErrPipelineFailure wraps stage errors from rendering, recognition
	// or normalization.
	ErrPipelineFailure = errors.New("ocr pipeline failure")
)
