package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusConstructors(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		state   string
		healthy bool
	}{
		{"healthy", NewHealthy("engine", "ok"), StateHealthy, true},
		{"degraded", NewDegraded("engine", "slow"), StateDegraded, false},
		{"unhealthy", NewUnhealthy("engine", "down"), StateUnhealthy, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "engine", tt.status.Component)
			assert.Equal(t, tt.state, tt.status.Status)
			assert.Equal(t, tt.healthy, tt.status.Healthy)
			assert.False(t, tt.status.Timestamp.IsZero())
		})
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"empty", nil, StateHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, StateHealthy},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, StateDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, StateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("simucore", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

func TestAggregate_SortsAndCopies(t *testing.T) {
	subs := []Status{NewHealthy("websocket", ""), NewHealthy("engine", "")}
	got := Aggregate("simucore", subs)

	require.Len(t, got.SubStatuses, 2)
	assert.Equal(t, "engine", got.SubStatuses[0].Component)
	assert.Equal(t, "websocket", subs[0].Component, "input slice must not be reordered")
}

func TestMonitor_UpdateGetRemove(t *testing.T) {
	m := NewMonitor("simucore")

	m.UpdateHealthy("engine", "running")
	m.UpdateDegraded("websocket", "no clients")

	s, ok := m.Get("engine")
	require.True(t, ok)
	assert.True(t, s.IsHealthy())
	assert.Equal(t, 2, m.Count())

	assert.True(t, m.AggregateHealth().IsDegraded())

	m.UpdateUnhealthy("engine", "tick failed")
	assert.True(t, m.AggregateHealth().IsUnhealthy())

	m.Remove("engine")
	_, ok = m.Get("engine")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Count())
}

func TestMonitor_UpdateStampsName(t *testing.T) {
	m := NewMonitor("simucore")
	m.Update("engine", Status{Status: StateHealthy, Healthy: true})

	s, ok := m.Get("engine")
	require.True(t, ok)
	assert.Equal(t, "engine", s.Component)
	assert.False(t, s.Timestamp.IsZero())
}

func TestMonitor_ServeHTTP(t *testing.T) {
	m := NewMonitor("simucore")
	m.UpdateHealthy("engine", "running")

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "simucore", body.Component)
	assert.True(t, body.Healthy)

	m.UpdateUnhealthy("websocket", "bind failed")
	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMonitor_Concurrent(t *testing.T) {
	m := NewMonitor("simucore")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("svc-%d", i%5)
			m.UpdateHealthy(name, "ok")
			_ = m.AggregateHealth()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, m.Count())
}
