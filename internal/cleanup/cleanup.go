package cleanup

import (
	"context"
	"fmt"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/cache"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository/files"
)

// Events emitted after a successful cleanup.
const (
	EventLevelDeleted  = "level.deleted"
	EventSensorDeleted = "sensor.deleted"
	EventSpoolSwept    = "spool.swept"
)

// Invalidator drops cached snapshots.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePattern(ctx context.Context, pattern string) error
}

// CleanupService coordinates deletions with the cached views depending on
// them. The cached tree is never patched locally: it is dropped and the next
// read refetches it in full.
type CleanupService struct {
	levels  repository.LevelRepository
	sensors repository.SensorRepository
	cache   Invalidator
	spool   *files.Spool
	events  *nuts.EventEmitter
}

// New creates a new CleanupService. spool may be nil.
func New(
	levels repository.LevelRepository,
	sensors repository.SensorRepository,
	cache Invalidator,
	spool *files.Spool,
) *CleanupService {
	return &CleanupService{
		levels:  levels,
		sensors: sensors,
		cache:   cache,
		spool:   spool,
		events:  nuts.NewEventEmitter(),
	}
}

// DeleteLevel deletes a node of the tree and invalidates the tree and every
// level summary.
func (s *CleanupService) DeleteLevel(ctx context.Context, levelID string) error {
	if err := s.levels.DeleteNode(ctx, levelID); err != nil {
		return err
	}
	if err := s.invalidateLevels(ctx); err != nil {
		nuts.L.Warnf("[Cleanup] Level %s deleted but cache invalidation failed: %v", levelID, err)
	}

	s.events.Emit(EventLevelDeleted, levelID)
	return nil
}

// DeleteSensor deletes a sensor. Sensor readings are part of the tree and
// the summaries, so both are invalidated as well.
func (s *CleanupService) DeleteSensor(ctx context.Context, sensorID string) error {
	if err := s.sensors.Delete(ctx, sensorID); err != nil {
		return err
	}
	if err := s.invalidateLevels(ctx); err != nil {
		nuts.L.Warnf("[Cleanup] Sensor %s deleted but cache invalidation failed: %v", sensorID, err)
	}

	s.events.Emit(EventSensorDeleted, sensorID)
	return nil
}

// InvalidateTree drops the cached tree and summaries after a create or update.
func (s *CleanupService) InvalidateTree(ctx context.Context) error {
	return s.invalidateLevels(ctx)
}

// SweepSpool removes staged exports older than maxAge, left behind by a
// crash mid-download.
func (s *CleanupService) SweepSpool(ctx context.Context, maxAge time.Duration) (int, error) {
	if s.spool == nil {
		return 0, nil
	}
	n, err := s.spool.DeleteOldFiles(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return n, fmt.Errorf("failed to sweep spool: %w", err)
	}
	if n > 0 {
		s.events.Emit(EventSpoolSwept, fmt.Sprint(n))
	}
	return n, nil
}

// RunSpoolSweeper sweeps the spool every interval until ctx is done.
func (s *CleanupService) RunSpoolSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepSpool(ctx, maxAge); err != nil {
				nuts.L.Warnf("[Cleanup] %v", err)
			}
		}
	}
}

func (s *CleanupService) invalidateLevels(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.InvalidatePattern(ctx, cache.TreePattern); err != nil {
		return err
	}
	return s.cache.InvalidatePattern(ctx, cache.SummaryPattern)
}

// OnCleanup registers a callback for cleanup events
func (s *CleanupService) OnCleanup(event string, handler func(id string)) {
	s.events.On(event, "cleanup_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if id, ok := args[0].(string); ok {
				handler(id)
			}
		}
	})
}
