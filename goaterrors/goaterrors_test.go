package goaterrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func TestChannelFailure_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ChannelFailure{Cause: cause}
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "boom")
}

func TestAborted_ErrorMessageVariants(t *testing.T) {
	require.Equal(t, "goat: aborted", (&Aborted{}).Error())
	require.Equal(t, "goat: aborted: reset", (&Aborted{Reason: "reset"}).Error())
}

func TestResetAborted_IsAbortedWithResetReason(t *testing.T) {
	var a *Aborted
	require.True(t, errors.As(ResetAborted, &a))
	require.Equal(t, "reset", a.Reason)
}

func TestResponseStatus_InteropsWithGRPCStatusFromError(t *testing.T) {
	st := grpcstatus.New(codes.InvalidArgument, "bad input")
	err := &ResponseStatus{Status: st}

	got, ok := grpcstatus.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.InvalidArgument, got.Code())
	require.Equal(t, "bad input", got.Message())
}

func TestProtocolInvariantViolation_Message(t *testing.T) {
	require.Equal(t, "invalid response", (&ProtocolInvariantViolation{}).Error())
}

func TestUploadFailure_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &UploadFailure{Cause: cause}
	require.Equal(t, "upload error: disk full", err.Error())
	require.ErrorIs(t, err, cause)
}
