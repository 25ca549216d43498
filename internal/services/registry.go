// Package services implements the toechat client engine: the quota tracker,
// the session store, the optimistic send pipeline, and their supporting
// services.
package services

import (
	"fmt"
	"sync"

	"toechat/pkg/chattypes"
)

// Registry manages service registration and lifecycle for toechat services.
type Registry struct {
	mu       sync.RWMutex
	services map[string]chattypes.Service
}

// NewRegistry creates a new service registry with an empty service map.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]chattypes.Service),
	}
}

// RegisterService adds a service to the registry, returning an error if already registered.
func (r *Registry) RegisterService(service chattypes.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := service.Name()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}

	r.services[name] = service
	return nil
}

// GetService retrieves a service by name, returning an error if not found.
func (r *Registry) GetService(name string) (chattypes.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	service, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service %s not found", name)
	}

	return service, nil
}

// InitializeAll initializes all registered services.
func (r *Registry) InitializeAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, service := range r.services {
		if err := service.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize service %s: %w", name, err)
		}
	}

	return nil
}

// GetAllServices returns a copy of all registered services.
func (r *Registry) GetAllServices() map[string]chattypes.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]chattypes.Service)
	for name, service := range r.services {
		result[name] = service
	}

	return result
}
