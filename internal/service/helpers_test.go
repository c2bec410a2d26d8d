package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MKhiriev/phi-guard/internal/adapter"
	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/store"
	"github.com/MKhiriev/phi-guard/internal/store/memory"
	"github.com/MKhiriev/phi-guard/models"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

// memoryProvider is a writable secret store.
type memoryProvider struct {
	mu     sync.Mutex
	active string
	keys   map[string]models.KeyMaterial
	putErr error
}

func newMemoryProvider(id string, key models.KeyMaterial) *memoryProvider {
	return &memoryProvider{active: id, keys: map[string]models.KeyMaterial{id: key}}
}

func (p *memoryProvider) ActiveKey(context.Context) (string, models.KeyMaterial, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active, bytes.Clone(p.keys[p.active]), nil
}

func (p *memoryProvider) KeyByVersion(_ context.Context, id string) (models.KeyMaterial, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.keys[id]
	if !ok {
		return nil, adapter.ErrKeyNotFound
	}
	return bytes.Clone(k), nil
}

func (p *memoryProvider) PutKey(_ context.Context, id string, key models.KeyMaterial) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.putErr != nil {
		return p.putErr
	}
	p.keys[id] = bytes.Clone(key)
	p.active = id
	return nil
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func testKey(b byte) models.KeyMaterial {
	return bytes.Repeat([]byte{b}, 32)
}

func ptr[T any](v T) *T { return &v }

var testKeysConfig = config.Keys{
	RotationInterval: 90 * 24 * time.Hour,
	UsageCeiling:     1000,
	RetentionWindow:  30 * 24 * time.Hour,
}

type testEnv struct {
	storages *store.Storages
	provider *memoryProvider
	clock    *testClock
	services *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		storages: memory.NewStorages(),
		provider: newMemoryProvider("k1", testKey(1)),
		clock:    newTestClock(),
	}
	cfg := config.StructuredConfig{Keys: testKeysConfig}
	env.services = NewServices(env.storages, env.provider, cfg, logger.Nop(),
		WithClock(env.clock.Now), WithIDGenerator(&seqIDs{}))

	require.NoError(t, env.services.Keys.Load(context.Background()))
	return env
}

func (e *testEnv) auditLog(t *testing.T) []models.AuditRecord {
	t.Helper()
	records, err := e.storages.Audit.Query(context.Background(), models.AuditQuery{})
	require.NoError(t, err)
	return records
}

func patientCreate(id string) models.MutationRequest {
	return models.MutationRequest{
		EntityName: "Patient",
		EntityID:   id,
		Action:     models.ActionCreate,
		Actor:      "dr.house",
		Fields: []models.FieldInput{
			{Name: "name", Value: ptr("Jane Roe"), Sensitive: true},
			{Name: "ward", Value: ptr("B2")},
		},
	}
}
