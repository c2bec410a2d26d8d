package app

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/MKhiriev/phi-guard/internal/adapter"
	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/MKhiriev/phi-guard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(addr string) *config.StructuredConfig {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	return &config.StructuredConfig{
		App: config.App{
			TokenSignKey:  "sign",
			TokenIssuer:   "phi-guard",
			TokenDuration: time.Hour,
			Version:       "test",
		},
		Storage: config.Storage{DB: config.DB{Driver: config.DriverMemory}},
		Server: config.Server{
			HTTPAddress:     addr,
			RequestTimeout:  time.Second,
			ShutdownTimeout: time.Second,
		},
		Secrets: config.Secrets{
			Provider:    config.SecretsEnv,
			ActiveKeyID: "k1",
			ActiveKey:   base64.StdEncoding.EncodeToString(key),
		},
		Keys: config.Keys{
			RotationInterval: 24 * time.Hour,
			RetentionWindow:  time.Hour,
		},
		Workers: config.Workers{
			SweepInterval:         time.Hour,
			SweepBatchSize:        10,
			RotationCheckInterval: time.Hour,
		},
	}
}

func TestNew_MemoryBackend(t *testing.T) {
	a, err := New(context.Background(), testConfig(""), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	versions := a.Services.Keys.Versions()
	require.Len(t, versions, 1)
	assert.Equal(t, "k1", versions[0].ID)
	assert.Equal(t, models.KeyActive, versions[0].Status)

	name := "Jane Roe"
	ctx := utils.WithActor(context.Background(), "dr.house")
	res, err := a.Services.Records.Apply(ctx, models.MutationRequest{
		EntityName: "Patient",
		EntityID:   "p-1",
		Action:     models.ActionCreate,
		Fields:     []models.FieldInput{{Name: "name", Value: &name, Sensitive: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "k1", res.Record.KeyVersion)

	v, err := a.Services.Audit.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, v.Valid)
	// the key registration plus the patient create
	assert.Equal(t, 2, v.Records)
}

func TestNew_FailsWithoutKeyMaterial(t *testing.T) {
	cfg := testConfig("")
	cfg.Secrets.ActiveKey = ""

	_, err := New(context.Background(), cfg, logger.Nop())

	assert.ErrorIs(t, err, adapter.ErrKeyNotFound)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := testConfig("")
	cfg.Storage.DB.Driver = "oracle"

	_, err := New(context.Background(), cfg, logger.Nop())

	assert.Error(t, err)
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	a, err := New(context.Background(), testConfig("127.0.0.1:18441"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18441/version")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body) == "test"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}
