package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/room4-2/OpenCallGate/bridge"
	"github.com/room4-2/OpenCallGate/config"
)

// entry pairs a live bridge with its bookkeeping metadata
type entry struct {
	bridge           *bridge.Bridge
	callConnectionID string
	createdAt        time.Time
}

// Manager tracks every live call bridge. Redis mirrors the registry for
// external visibility but is optional; the in-memory map is authoritative.
type Manager struct {
	bridges map[string]*entry
	mu      sync.RWMutex
	redis   *redis.Client
	config  *config.Config
}

// NewManager creates a bridge manager with Redis connection
func NewManager(cfg *config.Config) (*Manager, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Redis unavailable, continue without it
		redisClient = nil
	}

	return &Manager{
		bridges: make(map[string]*entry),
		redis:   redisClient,
		config:  cfg,
	}, nil
}

// CreateBridge opens a new bridge over an accepted connection and
// registers it. callConnectionID may be empty when the transport did not
// advertise one.
func (sm *Manager) CreateBridge(ctx context.Context, conn bridge.ClientConn, open bridge.SessionOpener, callConnectionID string) (string, *bridge.Bridge, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.bridges) >= sm.config.MaxSessions {
		return "", nil, fmt.Errorf("maximum sessions reached")
	}

	b, err := bridge.Open(ctx, conn, open)
	if err != nil {
		return "", nil, err
	}

	bridgeID := uuid.New().String()
	e := &entry{
		bridge:           b,
		callConnectionID: callConnectionID,
		createdAt:        time.Now(),
	}
	sm.bridges[bridgeID] = e

	if sm.redis != nil {
		sm.redis.HSet(ctx, "bridge:"+bridgeID, map[string]interface{}{
			"created_at":         e.createdAt.Format(time.RFC3339),
			"call_connection_id": callConnectionID,
			"status":             "active",
		})
		sm.redis.SAdd(ctx, "active_bridges", bridgeID)
		sm.redis.Expire(ctx, "bridge:"+bridgeID, sm.config.SessionTimeout)
	}
	return bridgeID, b, nil
}

// GetBridge retrieves a bridge by ID
func (sm *Manager) GetBridge(bridgeID string) (*bridge.Bridge, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	e, exists := sm.bridges[bridgeID]
	if !exists {
		return nil, false
	}
	return e.bridge, true
}

// RemoveBridge deregisters a bridge after the handler has closed it
func (sm *Manager) RemoveBridge(ctx context.Context, bridgeID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.removeLocked(ctx, bridgeID)
}

func (sm *Manager) removeLocked(ctx context.Context, bridgeID string) {
	delete(sm.bridges, bridgeID)

	if sm.redis != nil {
		sm.redis.Del(ctx, "bridge:"+bridgeID)
		sm.redis.SRem(ctx, "active_bridges", bridgeID)
	}
}

// GetActiveBridgeCount returns current bridge count
func (sm *Manager) GetActiveBridgeCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.bridges)
}

// CleanupInactiveBridges closes and removes bridges with no frame traffic
// inside the session timeout.
func (sm *Manager) CleanupInactiveBridges(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for id, e := range sm.bridges {
		if now.Sub(e.bridge.LastActivity()) > sm.config.SessionTimeout {
			_ = e.bridge.Close(nil)
			sm.removeLocked(ctx, id)
		}
	}
}

// StartCleanupRoutine starts periodic cleanup of inactive bridges
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveBridges(ctx)
		}
	}
}

// Shutdown closes all bridges
func (sm *Manager) Shutdown() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ctx := context.Background()
	for id, e := range sm.bridges {
		_ = e.bridge.Close(nil)
		sm.removeLocked(ctx, id)
	}

	if sm.redis != nil {
		sm.redis.Close()
	}
}
