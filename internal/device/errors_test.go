package device

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/benchlink-core/internal/valve"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid request", &valve.InvalidRequestError{Reason: "self-pair"}, CodeInvalidRequest},
		{"unreachable", &valve.UnreachableConnectionError{}, CodeUnreachable},
		{"ambiguous", &valve.AmbiguousConnectionError{Candidates: []int{0, 2}}, CodeAmbiguous},
		{"unlabeled", &valve.UnlabeledPositionError{Position: 3}, CodeUnlabeled},
		{"communication", &valve.CommunicationError{Op: OpMove, Err: errors.New("eof")}, CodeCommunication},
		{
			"out of range reported by device",
			&valve.CommunicationError{Op: OpQuery, Err: fmt.Errorf("%w: 9", valve.ErrPositionOutOfRange)},
			CodeCommunication,
		},
		{"device not found", fmt.Errorf("get: %w", ErrDeviceNotFound), CodeNotFound},
		{"component not found", ErrComponentNotFound, CodeNotFound},
		{"not supported", ErrCapabilityNotSupported, CodeNotSupported},
		{"other", errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
