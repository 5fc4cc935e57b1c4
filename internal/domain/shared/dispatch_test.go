package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDispatchError(t *testing.T) {
	boom := errors.New("boom")
	de := &DispatchError{
		Failures: []SubscriberFailure{{
			EventID:    uuid.New(),
			EventType:  "DeviceDeleted",
			Subscriber: "audit",
			Err:        boom,
		}},
		Undispatched: 2,
		Cause:        context.Canceled,
	}

	assert.False(t, de.Empty())
	assert.ErrorIs(t, de, boom)
	assert.ErrorIs(t, de, context.Canceled)
	assert.Contains(t, de.Error(), "1 subscriber failure(s)")
	assert.Contains(t, de.Error(), "2 event(s) undispatched")
	assert.Contains(t, de.Error(), "audit")
}

func TestDispatchError_Empty(t *testing.T) {
	var nilErr *DispatchError
	assert.True(t, nilErr.Empty())
	assert.True(t, (&DispatchError{}).Empty())
}

func TestAsDispatchError(t *testing.T) {
	assert.Nil(t, AsDispatchError(nil))

	de := &DispatchError{Undispatched: 1}
	assert.Same(t, de, AsDispatchError(de))

	plain := errors.New("bus down")
	wrapped := AsDispatchError(plain)
	assert.ErrorIs(t, wrapped, plain)
}

func TestSaveResult_Degraded(t *testing.T) {
	assert.False(t, SaveResult{RowsAffected: 1}.Degraded())
	assert.True(t, SaveResult{DispatchErr: &DispatchError{Undispatched: 1}}.Degraded())
}

func TestNopDispatcher(t *testing.T) {
	assert.NoError(t, NopDispatcher{}.Dispatch(context.Background(), newSampleEvent("X")))
}
