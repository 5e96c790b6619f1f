package enums

import (
	"fmt"
	"strings"
)

// ComponentType is the category key identifying one slot of a custom PC build.
type ComponentType string

const (
	ComponentTypeCPU       ComponentType = "cpu"
	ComponentTypeMainboard ComponentType = "mainboard"
	ComponentTypeRAM       ComponentType = "ram"
	ComponentTypeGPU       ComponentType = "gpu"
	ComponentTypeStorage   ComponentType = "storage"
	ComponentTypePSU       ComponentType = "psu"
	ComponentTypeCase      ComponentType = "case"
	ComponentTypeCooler    ComponentType = "cooler"
	ComponentTypeMonitor   ComponentType = "monitor"
)

var validComponentTypes = []ComponentType{
	ComponentTypeCPU,
	ComponentTypeMainboard,
	ComponentTypeRAM,
	ComponentTypeGPU,
	ComponentTypeStorage,
	ComponentTypePSU,
	ComponentTypeCase,
	ComponentTypeCooler,
	ComponentTypeMonitor,
}

var requiredComponentTypes = map[ComponentType]struct{}{
	ComponentTypeCPU:       {},
	ComponentTypeMainboard: {},
	ComponentTypeRAM:       {},
	ComponentTypeStorage:   {},
	ComponentTypePSU:       {},
	ComponentTypeCase:      {},
}

// ComponentTypes returns every build slot in display order.
func ComponentTypes() []ComponentType {
	out := make([]ComponentType, len(validComponentTypes))
	copy(out, validComponentTypes)
	return out
}

// String implements fmt.Stringer.
func (c ComponentType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ComponentType.
func (c ComponentType) IsValid() bool {
	for _, candidate := range validComponentTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsRequired reports whether a build cannot be ordered without this slot.
func (c ComponentType) IsRequired() bool {
	_, ok := requiredComponentTypes[c]
	return ok
}

// ParseComponentType converts raw input into a ComponentType.
func ParseComponentType(value string) (ComponentType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validComponentTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid component type %q", value)
}
