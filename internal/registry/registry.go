// Package registry is the device directory: MAC to last-known IP, the
// blocked flag and the set of devices currently probing the network.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"wifi-admission-backend/internal/metrics"
	"wifi-admission-backend/internal/model"
	"wifi-admission-backend/internal/parse"
	"wifi-admission-backend/internal/store"
)

var ErrNotFound = errors.New("device not found")

type Registry struct {
	devices store.DeviceStore
	live    *cache.Cache
	metrics *metrics.Collector
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

func WithMetrics(m *metrics.Collector) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New returns a Registry whose live set forgets a device liveWindow after
// its last observation.
func New(devices store.DeviceStore, liveWindow time.Duration, opts ...Option) *Registry {
	r := &Registry{
		devices: devices,
		live:    cache.New(liveWindow, 2*liveWindow),
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Lookup(ctx context.Context, mac string) (*model.Device, error) {
	mac, err := parse.NormalizeMAC(mac)
	if err != nil {
		return nil, ErrNotFound
	}
	dev, err := r.devices.GetDevice(ctx, mac)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return dev, err
}

func (r *Registry) LookupByIP(ctx context.Context, ip string) (*model.Device, error) {
	dev, err := r.devices.GetDeviceByIP(ctx, ip)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return dev, err
}

func (r *Registry) SetBlocked(ctx context.Context, mac string, blocked bool) error {
	err := r.devices.SetDeviceBlocked(ctx, mac, blocked)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	r.log.Info().Str("mac", mac).Bool("blocked", blocked).Msg("device access changed")
	return nil
}

func (r *Registry) Rename(ctx context.Context, mac, name string) error {
	err := r.devices.SetDeviceName(ctx, mac, name)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Observe records that mac answered from ip. Unknown devices are created
// blocked; a known device keeps its blocked flag and name.
func (r *Registry) Observe(ctx context.Context, mac, ip, name string) (bool, error) {
	mac, err := parse.NormalizeMAC(mac)
	if err != nil {
		return false, err
	}
	created, err := r.devices.UpsertDevice(ctx, r.now().UTC(), mac, ip, name)
	if err != nil {
		return false, fmt.Errorf("failed to observe device: %w", err)
	}
	r.live.SetDefault(mac, ip)
	if created {
		r.metrics.RecordDeviceDiscovered()
		r.log.Info().Str("mac", mac).Str("ip", ip).Msg("new device discovered")
	}
	return created, nil
}

// ListLive returns the devices observed within the live window, most
// recently seen first.
func (r *Registry) ListLive(ctx context.Context) ([]model.Device, error) {
	items := r.live.Items()
	if len(items) == 0 {
		return []model.Device{}, nil
	}

	all, err := r.devices.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	live := make([]model.Device, 0, len(items))
	for _, dev := range all {
		if _, ok := items[dev.MAC]; ok {
			live = append(live, dev)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].LastSeen.After(live[j].LastSeen)
	})
	return live, nil
}

// ListAll returns every device ever seen.
func (r *Registry) ListAll(ctx context.Context) ([]model.Device, error) {
	return r.devices.ListDevices(ctx)
}

// Forget drops the live set, used after a data flush.
func (r *Registry) Forget() {
	r.live.Flush()
}
