package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/louisbranch/storefront/internal/platform/scripting"
)

// ScriptPrefix marks handler names backed by a Lua script.
const ScriptPrefix = "script:"

// RegisterScripts registers a "script:<name>" handler for every Lua script
// the engine found, so script files can be scheduled like compiled handlers.
func RegisterScripts(registry *Registry, engine *scripting.Engine) error {
	if registry == nil || engine == nil {
		return nil
	}
	names, err := engine.Names()
	if err != nil {
		return fmt.Errorf("list scripts: %w", err)
	}
	for _, name := range names {
		if err := registry.Register(scriptHandler{engine: engine, script: name}); err != nil {
			return fmt.Errorf("register script %s: %w", name, err)
		}
	}
	return nil
}

type scriptHandler struct {
	engine *scripting.Engine
	script string
}

func (h scriptHandler) Name() string { return ScriptPrefix + h.script }

// Run executes the script's run() function. A script error is an ordinary
// task failure.
func (h scriptHandler) Run(ctx context.Context) error {
	message, err := h.engine.Run(ctx, h.script)
	if err != nil {
		return err
	}
	if message != "" {
		log.Printf("scheduler: script %s: %s", h.script, message)
	}
	return nil
}
