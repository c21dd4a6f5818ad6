// Package scanner discovers hotspot clients by reading the kernel's
// neighbour table and feeding each entry to the device registry.
package scanner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"wifi-admission-backend/config"
	"wifi-admission-backend/internal/parse"
)

// Observer records a device sighting.
type Observer interface {
	Observe(ctx context.Context, mac, ip, name string) (bool, error)
}

// Service orchestrates neighbour discovery.
type Service struct {
	cfg      config.ScannerConfig
	hostMAC  string
	hostIP   string
	observer Observer
	log      zerolog.Logger
}

// NewService creates a scanner. The gateway's own MAC and IP are never
// reported as clients.
func NewService(cfg config.ScannerConfig, portal config.PortalConfig, observer Observer, log zerolog.Logger) *Service {
	hostMAC, _ := parse.NormalizeMAC(portal.HostMAC)
	return &Service{
		cfg:      cfg,
		hostMAC:  hostMAC,
		hostIP:   portal.HostIP,
		observer: observer,
		log:      log,
	}
}

// Run scans once and then every interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info().Msg("scanner is disabled, not starting")
		return nil
	}
	s.log.Info().Str("table", s.cfg.ARPTablePath).Str("interface", s.cfg.Interface).Dur("interval", s.cfg.Interval).Msg("starting scanner")

	s.scan(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scanner shutting down")
			return nil
		case <-timer.C:
			s.scan(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) scan(ctx context.Context) {
	n, err := s.ScanOnce(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scan cycle failed")
		return
	}
	s.log.Debug().Int("devices", n).Msg("scan cycle finished")
}

// ScanOnce reads the neighbour table and observes every client in it. It
// returns how many devices were observed. A failure to observe one device
// does not stop the others.
func (s *Service) ScanOnce(ctx context.Context) (int, error) {
	neighbors, err := s.neighbors()
	if err != nil {
		return 0, err
	}

	observed := 0
	for _, n := range neighbors {
		if s.isHost(n) {
			continue
		}
		if _, err := s.observer.Observe(ctx, n.MAC, n.IP, ""); err != nil {
			s.log.Warn().Err(err).Str("mac", n.MAC).Msg("failed to record device")
			continue
		}
		observed++
	}
	return observed, nil
}

// ResolveMAC looks ip up in the neighbour table directly. It is the
// fallback when the registry has not yet seen the device.
func (s *Service) ResolveMAC(ip string) (string, bool) {
	neighbors, err := s.neighbors()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read neighbour table")
		return "", false
	}
	return parse.LookupMAC(neighbors, ip)
}

func (s *Service) neighbors() ([]parse.Neighbor, error) {
	f, err := os.Open(s.cfg.ARPTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open neighbour table: %w", err)
	}
	defer f.Close()
	return parse.ParseARPTable(f, s.cfg.Interface)
}

func (s *Service) isHost(n parse.Neighbor) bool {
	return (s.hostMAC != "" && n.MAC == s.hostMAC) || (s.hostIP != "" && n.IP == s.hostIP)
}
