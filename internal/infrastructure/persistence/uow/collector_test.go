package uow

import (
	"context"
	"testing"

	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Collect(t *testing.T) {
	g := NewGateway(nil, newTestRegistry(t))
	u := g.Begin(context.Background())
	tenantID := uuid.New()

	first := newDevice(t, tenantID, "first")
	require.NoError(t, first.Rename("first-renamed"))
	second := newDevice(t, tenantID, "second")
	quiet := newDevice(t, tenantID, "quiet")
	quiet.ClearDomainEvents()

	require.NoError(t, u.Add(first))
	require.NoError(t, u.Add(quiet))
	require.NoError(t, u.Add(second))

	c := NewCollector()
	events := c.Collect(u.Entries())

	require.Len(t, events, 3)
	assert.Equal(t, device.EventTypeDeviceCreated, events[0].EventType())
	assert.Equal(t, first.ID, events[0].AggregateID())
	assert.Equal(t, device.EventTypeDeviceRenamed, events[1].EventType())
	assert.Equal(t, first.ID, events[1].AggregateID())
	assert.Equal(t, second.ID, events[2].AggregateID())

	assert.Empty(t, first.GetDomainEvents())
	assert.Empty(t, second.GetDomainEvents())

	// queues were drained, so a second pass finds nothing
	assert.Empty(t, c.Collect(u.Entries()))
}

func TestCollector_SkipsNonEventSources(t *testing.T) {
	assert.Empty(t, NewCollector().Collect(nil))
}
