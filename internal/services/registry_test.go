package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toechat/internal/testutils"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	backend := testutils.NewFakeBackend()

	quota := NewQuotaService(backend, false)
	require.NoError(t, registry.RegisterService(quota))

	retrieved, err := registry.GetService("quota_tracker")
	require.NoError(t, err)
	assert.Same(t, quota, retrieved.(*QuotaService))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	backend := testutils.NewFakeBackend()

	require.NoError(t, registry.RegisterService(NewQuotaService(backend, false)))
	err := registry.RegisterService(NewQuotaService(backend, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_GetUnknownService(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.GetService("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegistry_InitializeAll(t *testing.T) {
	registry := NewRegistry()
	backend := testutils.NewFakeBackend()

	quota := NewQuotaService(backend, false)
	store := NewSessionService(backend, true)
	pipeline := NewSendService(backend, store, quota, true)

	require.NoError(t, registry.RegisterService(quota))
	require.NoError(t, registry.RegisterService(store))
	require.NoError(t, registry.RegisterService(pipeline))

	require.NoError(t, registry.InitializeAll())
	assert.Len(t, registry.GetAllServices(), 3)
}
