package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/slotsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailWrapsCause(t *testing.T) {
	key := types.SlotKey{Date: "2025-08-29", TimeSlot: types.Morning}
	err := Fail(OpUpsert, key, context.DeadlineExceeded)

	var rf *RemoteFailure
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, OpUpsert, rf.Op)
	assert.Equal(t, key, rf.Key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "remote upsert 2025-08-29/morning failed: context deadline exceeded", err.Error())
}

func TestFailKeepsExistingRemoteFailure(t *testing.T) {
	inner := &RemoteFailure{Op: OpRemove, Cause: errors.New("boom")}
	assert.Same(t, inner, Fail(OpUpsert, types.SlotKey{}, inner))
	assert.NoError(t, Fail(OpUpsert, types.SlotKey{}, nil))
	assert.Equal(t, "remote remove failed: boom", inner.Error())
}
