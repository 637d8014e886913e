// Package imagecodec converts editor image tensors (a batch of frames with
// float channels normalized to [0,1]) to and from PNG, and to the base64 form
// expected by the vision endpoint.
package imagecodec
