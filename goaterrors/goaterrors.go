// Package goaterrors defines GOAT's error taxonomy: the kinds a call can
// fail with are distinguished by type, not by sentinel value, so callers
// compose with errors.As/errors.Is the way go-eventloop's
// TypeError/RangeError/TimeoutError taxonomy does.
//
// It is a separate package (rather than living in the root goat package)
// so that internal/demux - which needs ResetAborted as its default Reset
// reason - can depend on it without creating an import cycle back through
// the root package.
package goaterrors

import (
	"fmt"

	grpcstatus "google.golang.org/grpc/status"
)

// ChannelFailure indicates ChannelIO.Read or ChannelIO.Write failed.
// Observed on Read, it is latched by the demultiplexer as the read-error
// and rejects every outstanding call until Reset.
type ChannelFailure struct {
	Cause error
}

func (e *ChannelFailure) Error() string {
	return fmt.Sprintf("goat: channel failure: %v", e.Cause)
}

func (e *ChannelFailure) Unwrap() error { return e.Cause }

// Aborted indicates caller-driven cancellation, via context cancellation
// on a call or via Reset. Reason distinguishes the two ("reset" for
// Transport.Reset's default, empty for a cancelled context).
type Aborted struct {
	Reason string
	Cause  error
}

func (e *Aborted) Error() string {
	if e.Reason == "" {
		return "goat: aborted"
	}
	return "goat: aborted: " + e.Reason
}

func (e *Aborted) Unwrap() error { return e.Cause }

// ResetAborted is the default reason Transport.Reset uses when the caller
// does not supply one.
var ResetAborted error = &Aborted{Reason: "reset"}

// ResponseStatus wraps a peer-returned non-zero status code, preserving
// code, message, and details by carrying the underlying grpc/status
// value untouched.
type ResponseStatus struct {
	Status *grpcstatus.Status
}

func (e *ResponseStatus) Error() string { return e.Status.Err().Error() }

func (e *ResponseStatus) Unwrap() error { return e.Status.Err() }

// GRPCStatus lets errors.As(err, new(interface{ GRPCStatus() *status.Status }))
// and status.FromError recover the structured status, the same interface
// grpc/status's own errors implement.
func (e *ResponseStatus) GRPCStatus() *grpcstatus.Status { return e.Status }

// ProtocolInvariantViolation indicates a response envelope the call driver
// could not complete with: on a unary call, one with neither a body nor a
// non-zero status (a trailer alone does not suffice); on a streaming call,
// one with none of body, non-zero status, or trailer. It is a defect in
// the peer, surfaced as a generic, codeless error rather than a
// synthesized status code.
type ProtocolInvariantViolation struct{}

func (e *ProtocolInvariantViolation) Error() string { return "invalid response" }

// UploadFailure wraps an error raised by a streaming call's input
// sequence, or by a mid-stream write failure, exactly as injected into
// the response sequence by the streaming call driver.
type UploadFailure struct {
	Cause error
}

func (e *UploadFailure) Error() string {
	return fmt.Sprintf("upload error: %v", e.Cause)
}

func (e *UploadFailure) Unwrap() error { return e.Cause }
