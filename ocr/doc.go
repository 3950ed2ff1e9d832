// Package ocr implements the page annotation pipeline: document pages are
// rasterized to images, a provider recognizes text lines with pixel
// geometry, and the recognized lines are normalized back into document
// points. The provider contract is small and transport-agnostic so engines
// can be backed by native libraries or remote services without leaking
// provider-specific concerns into callers.
package ocr
