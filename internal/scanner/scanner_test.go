package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifi-admission-backend/config"
)

const arpTable = `IP address       HW type     Flags       HW address            Mask     Device
192.168.1.1      0x1         0x2         02:00:00:00:00:01     *        wlan0
192.168.1.20     0x1         0x2         AA:BB:CC:11:22:33     *        wlan0
192.168.1.21     0x1         0x0         00:00:00:00:00:00     *        wlan0
192.168.1.22     0x1         0x2         de:ad:be:ef:00:01     *        wlan0
10.0.0.5         0x1         0x2         de:ad:be:ef:00:02     *        eth0
`

type mockObserver struct {
	mu      sync.Mutex
	seen    map[string]string
	failMAC string
}

func (m *mockObserver) Observe(_ context.Context, mac, ip, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mac == m.failMAC {
		return false, errors.New("database is locked")
	}
	if m.seen == nil {
		m.seen = make(map[string]string)
	}
	_, known := m.seen[mac]
	m.seen[mac] = ip
	return !known, nil
}

func (m *mockObserver) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func writeTable(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "arp")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestService(t *testing.T, obs Observer) *Service {
	cfg := config.ScannerConfig{
		Enabled:      true,
		Interval:     10 * time.Millisecond,
		ARPTablePath: writeTable(t, arpTable),
		Interface:    "wlan0",
	}
	portal := config.PortalConfig{HostMAC: "02-00-00-00-00-01", HostIP: "192.168.1.1"}
	return NewService(cfg, portal, obs, zerolog.Nop())
}

func TestScanOnce(t *testing.T) {
	obs := &mockObserver{}
	s := newTestService(t, obs)

	n, err := s.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]string{
		"aa:bb:cc:11:22:33": "192.168.1.20",
		"de:ad:be:ef:00:01": "192.168.1.22",
	}, obs.seen, "host, incomplete and foreign-interface rows are skipped")
}

func TestScanOnce_ObserveFailureSkipsOneDevice(t *testing.T) {
	obs := &mockObserver{failMAC: "aa:bb:cc:11:22:33"}
	s := newTestService(t, obs)

	n, err := s.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, obs.seen, "de:ad:be:ef:00:01")
}

func TestScanOnce_MissingTable(t *testing.T) {
	s := NewService(config.ScannerConfig{ARPTablePath: filepath.Join(t.TempDir(), "missing")}, config.PortalConfig{}, &mockObserver{}, zerolog.Nop())

	_, err := s.ScanOnce(context.Background())
	assert.Error(t, err)
	_, ok := s.ResolveMAC("192.168.1.20")
	assert.False(t, ok)
}

func TestResolveMAC(t *testing.T) {
	s := newTestService(t, &mockObserver{})

	mac, ok := s.ResolveMAC("192.168.1.20")
	assert.True(t, ok)
	assert.Equal(t, "aa:bb:cc:11:22:33", mac)

	_, ok = s.ResolveMAC("192.168.1.99")
	assert.False(t, ok)
}

func TestRun(t *testing.T) {
	t.Run("disabled returns immediately", func(t *testing.T) {
		obs := &mockObserver{}
		s := NewService(config.ScannerConfig{Enabled: false}, config.PortalConfig{}, obs, zerolog.Nop())
		assert.NoError(t, s.Run(context.Background()))
		assert.Zero(t, obs.count())
	})

	t.Run("scans until cancelled", func(t *testing.T) {
		obs := &mockObserver{}
		s := newTestService(t, obs)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		assert.Eventually(t, func() bool { return obs.count() == 2 }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("scanner did not stop after cancel")
		}
	})
}
