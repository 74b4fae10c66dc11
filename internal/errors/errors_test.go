package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clamser/pkg/contracts/domain"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "with cause",
			err:  NewAppError(ErrTypeParsing, "parsing export file", errors.New("boom")),
			want: "[PARSING] parsing export file: boom",
		},
		{
			name: "without cause",
			err:  NewAppError(ErrTypeConfig, "light cycle is ambiguous", nil),
			want: "[CONFIG] light cycle is ambiguous",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_UnwrapReachesTypedCause(t *testing.T) {
	cause := &DuplicateMeasurementError{
		Key: domain.Key{
			SubjectID: "S1",
			Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Channel:   domain.ChannelVO2,
		},
		SourceA: "a.csv",
		SourceB: "b.csv",
	}
	wrapped := NewAppError(ErrTypeMerge, "merging export files", cause)

	// Callers inspecting a pipeline failure must still see the typed
	// error through the AppError boundary.
	var dup *DuplicateMeasurementError
	require.ErrorAs(t, wrapped, &dup)
	assert.Equal(t, "S1", dup.Key.SubjectID)
	assert.True(t, errors.Is(wrapped, cause))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrTypeParsing, "parsing export file", errors.New("bad header")).
		WithContext("file", "vo2.csv").
		WithContext("line", 3)

	assert.Equal(t, "vo2.csv", err.Context["file"])
	assert.Equal(t, 3, err.Context["line"])
}
