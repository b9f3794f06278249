package knowledge

import (
	"context"

	"github.com/forgefit/brain/internal/storage"
)

// EquipmentStore defines the reads the equipment collector needs.
type EquipmentStore interface {
	EquipmentFor(userID string, limit int) ([]storage.EquipmentItem, error)
}

// EquipmentCollector lists where and with what the user can train.
// Equipment changes rarely, so it carries the longest forge TTL.
type EquipmentCollector struct {
	store EquipmentStore
}

func NewEquipmentCollector(store EquipmentStore) *EquipmentCollector {
	return &EquipmentCollector{store: store}
}

func (c *EquipmentCollector) Forge() Forge { return ForgeEquipment }

func (c *EquipmentCollector) Collect(ctx context.Context, userID string) (ForgeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := c.store.EquipmentFor(userID, equipmentLimit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return EquipmentKnowledge{}, nil
	}

	var k EquipmentKnowledge
	seen := make(map[string]bool)
	for _, it := range items {
		if it.Location != "" && !seen[it.Location] {
			seen[it.Location] = true
			k.Locations = append(k.Locations, it.Location)
		}
		if it.Name != "" {
			k.Items = append(k.Items, it.Name)
		}
	}
	return k, nil
}
