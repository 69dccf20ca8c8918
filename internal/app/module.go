package app

import (
	"fmt"
	"reflect"

	"github.com/gin-gonic/gin"
)

// Module is the contract between the composition root and a feature module.
// A module is a static descriptor: it names itself, lists the entities its
// repositories need, and exposes its controller on the routing groups.
type Module interface {
	Name() string
	// Models returns pointers to the entity types the module persists.
	Models() []any
	RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup)
}

// collectModels returns the union of every module's models, keeping the
// first occurrence of each type.
func collectModels(modules []Module) ([]any, error) {
	seen := make(map[reflect.Type]struct{})
	var models []any
	for i, m := range modules {
		if m == nil {
			return nil, fmt.Errorf("module at index %d is nil", i)
		}
		for _, model := range m.Models() {
			t := reflect.TypeOf(model)
			if t == nil || t.Kind() != reflect.Pointer {
				return nil, fmt.Errorf("module %q: model %T must be a non-nil pointer", m.Name(), model)
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			models = append(models, model)
		}
	}
	return models, nil
}
