package localstore

import (
	"context"
	"sync"

	"github.com/kevinaaaquil/readersync/models"
)

type Memory struct {
	mu   sync.Mutex
	data []byte
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(ctx context.Context) (*models.DeviceState, error) {
	m.mu.Lock()
	data := m.data
	m.mu.Unlock()
	return loadOrInit(ctx, m, data)
}

func (m *Memory) Save(_ context.Context, state *models.DeviceState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
