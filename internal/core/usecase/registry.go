package usecase

import (
	"fmt"
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

// ShapeRegistry maps logical type names to their shapes. Registration is
// expected at startup; re-registering a name overwrites it and keeps its
// original position in Names.
type ShapeRegistry struct {
	mu     sync.RWMutex
	shapes map[string]domain.Shape
	order  []string
}

func NewShapeRegistry() *ShapeRegistry {
	return &ShapeRegistry{shapes: make(map[string]domain.Shape)}
}

func (r *ShapeRegistry) Register(typeName string, shape domain.Shape) {
	if shape.Name == "" {
		shape.Name = typeName
	}
	shape = shape.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shapes[typeName]; !ok {
		r.order = append(r.order, typeName)
	}
	r.shapes[typeName] = shape
}

// Resolve returns the registered shape for typeName, else fallback when it
// is non-nil. The boolean is false when neither exists.
func (r *ShapeRegistry) Resolve(typeName string, fallback *domain.Shape) (domain.Shape, bool) {
	r.mu.RLock()
	shape, ok := r.shapes[typeName]
	r.mu.RUnlock()
	if ok {
		return shape, true
	}
	if fallback != nil {
		fb := *fallback
		if fb.Name == "" {
			fb.Name = typeName
		}
		return fb.Normalize(), true
	}
	return domain.Shape{}, false
}

// Names returns the registered type names in registration order.
func (r *ShapeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ByCollection finds the type whose shape lives in the given collection.
func (r *ShapeRegistry) ByCollection(collection string) (string, domain.Shape, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if s := r.shapes[name]; s.Collection == collection {
			return name, s, true
		}
	}
	return "", domain.Shape{}, false
}

// Require fails when any of the given names has not been registered.
func (r *ShapeRegistry) Require(typeNames ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, name := range typeNames {
		if _, ok := r.shapes[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: no shape registered for %s", domain.ErrUnknownKind, strings.Join(missing, ", "))
	}
	return nil
}
