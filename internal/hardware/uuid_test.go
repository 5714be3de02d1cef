package hardware

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableUUIDIsStable(t *testing.T) {
	t.Parallel()

	run := &fakeRunner{outputs: map[string]string{}}
	first := StableUUID(context.Background(), run)
	second := StableUUID(context.Background(), run)

	assert.Equal(t, first, second)

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestMachineIdentityNeverEmpty(t *testing.T) {
	t.Parallel()

	run := &fakeRunner{outputs: map[string]string{}}
	assert.NotEmpty(t, machineIdentity(context.Background(), run))
}
