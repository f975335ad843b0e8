package health

import (
	"testing"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestStatusOfflineWithoutHeartbeat(t *testing.T) {
	m := NewMonitor(30 * time.Second)
	require.Equal(t, types.ActiveOffline, m.Status(1, time.Now()))
}

func TestStatusOnlineWithinThreshold(t *testing.T) {
	m := NewMonitor(30 * time.Second)
	now := time.Now()
	m.Heartbeat(1, now)
	require.Equal(t, types.ActiveOnline, m.Status(1, now.Add(10*time.Second)))
}

func TestStatusOfflineAfterThreshold(t *testing.T) {
	m := NewMonitor(30 * time.Second)
	now := time.Now()
	m.Heartbeat(1, now)
	require.Equal(t, types.ActiveOffline, m.Status(1, now.Add(time.Minute)))
}

func TestForgetRemovesHeartbeat(t *testing.T) {
	m := NewMonitor(30 * time.Second)
	now := time.Now()
	m.Heartbeat(1, now)
	m.Forget(1)
	require.Equal(t, types.ActiveOffline, m.Status(1, now))
}
