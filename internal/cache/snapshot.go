package cache

import (
	"time"

	"github.com/forgefit/brain/internal/knowledge"
)

// snapshotKey tags whole-knowledge entries under the pseudo-forge "all",
// so forge-scoped invalidation never evicts them.
func snapshotKey(userID string) Key {
	return Key{UserID: userID, Forge: knowledge.ForgeAll, Subkey: "knowledge"}
}

// forgeDataKey tags one user's collected slice for one forge. These are
// the entries forge-scoped invalidation targets.
func forgeDataKey(userID string, forge knowledge.Forge) Key {
	return Key{UserID: userID, Forge: forge, Subkey: "data"}
}

type forgeEntry struct {
	data        knowledge.ForgeData
	collectedAt time.Time
}

// GetForgeData returns one user's cached slice for one forge, with the
// time it was collected. Satisfies knowledge.SnapshotCache.
func (m *Manager) GetForgeData(userID string, forge knowledge.Forge) (knowledge.ForgeData, time.Time, bool) {
	v, ok := m.Get(forgeDataKey(userID, forge))
	if !ok {
		return nil, time.Time{}, false
	}
	e, ok := v.(forgeEntry)
	if !ok {
		m.Delete(forgeDataKey(userID, forge))
		return nil, time.Time{}, false
	}
	return e.data, e.collectedAt, true
}

// SetForgeData caches one forge's slice under that forge's TTL from the
// rule table, so equipment outlives a training day and today's numbers
// barely outlive the conversation.
func (m *Manager) SetForgeData(userID string, forge knowledge.Forge, data knowledge.ForgeData, collectedAt time.Time) {
	m.Set(forgeDataKey(userID, forge), forgeEntry{data: data, collectedAt: collectedAt}, RuleFor(forge).TTL)
}

// InvalidateUserForge removes one user's entries for one forge, leaving
// other users and other forges untouched. Returns the eviction count.
func (m *Manager) InvalidateUserForge(userID string, forge knowledge.Forge) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.byForge[forge] {
		if key.UserID == userID {
			m.remove(key)
			n++
		}
	}
	return n
}

// InvalidateSnapshot drops one user's whole-knowledge snapshot. The
// per-forge entries stay; a rebuilt snapshot reuses whichever are fresh.
func (m *Manager) InvalidateSnapshot(userID string) {
	m.Delete(snapshotKey(userID))
}

// GetSnapshot returns the cached knowledge snapshot for a user, if fresh.
// Satisfies knowledge.SnapshotCache.
func (m *Manager) GetSnapshot(userID string) (*knowledge.UserKnowledge, bool) {
	v, ok := m.Get(snapshotKey(userID))
	if !ok {
		return nil, false
	}
	snap, ok := v.(*knowledge.UserKnowledge)
	if !ok {
		// Corrupt entry: treat as a miss and drop it.
		m.Delete(snapshotKey(userID))
		return nil, false
	}
	return snap, true
}

// SetSnapshot caches a knowledge snapshot under the snapshot TTL.
func (m *Manager) SetSnapshot(userID string, snap *knowledge.UserKnowledge) {
	m.Set(snapshotKey(userID), snap, SnapshotTTL)
}
