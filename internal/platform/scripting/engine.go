// Package scripting runs operator-provided Lua task handlers.
//
// A script lives at <dir>/<name>.lua and must define a global function
// run(). The function may return a string, which is surfaced to the caller
// as the run's result message. Scripts also see a storefront table with a
// log(message) helper and the script name under storefront.task.
package scripting

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Shopify/go-lua"
)

// Engine loads and executes Lua task scripts from one directory.
type Engine struct {
	dir string
}

// NewEngine returns an engine reading scripts from dir.
func NewEngine(dir string) (*Engine, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("script directory is required")
	}
	return &Engine{dir: filepath.Clean(dir)}, nil
}

// Names lists the available script names in sorted order.
func (e *Engine) Names() ([]string, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read script dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lua") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".lua"))
	}
	sort.Strings(names)
	return names, nil
}

// Has reports whether the named script exists.
func (e *Engine) Has(name string) bool {
	path, err := e.scriptPath(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Run executes the named script's run() function and returns its result
// message, if any. The context is consulted before the script starts; a
// running script cannot be interrupted.
func (e *Engine) Run(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := e.scriptPath(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("script %s: %w", name, err)
	}

	state := lua.NewState()
	lua.OpenLibraries(state)
	registerHelpers(state, name)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return "", fmt.Errorf("load script %s: %w", name, err)
	}
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return "", fmt.Errorf("run script %s: %w", name, err)
	}

	state.Global("run")
	if state.TypeOf(-1) != lua.TypeFunction {
		state.Pop(1)
		return "", fmt.Errorf("script %s must define run()", name)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return "", fmt.Errorf("script %s run(): %w", name, err)
	}

	message := ""
	if state.TypeOf(-1) == lua.TypeString {
		message, _ = state.ToString(-1)
	}
	state.Pop(1)
	return message, nil
}

func (e *Engine) scriptPath(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("script name is required")
	}
	if trimmed != filepath.Base(trimmed) || strings.ContainsAny(trimmed, "/\\") {
		return "", fmt.Errorf("invalid script name %q", name)
	}
	return filepath.Join(e.dir, trimmed+".lua"), nil
}

func registerHelpers(state *lua.State, name string) {
	helpers := []lua.RegistryFunction{
		{Name: "log", Function: func(l *lua.State) int {
			message := lua.CheckString(l, 1)
			log.Printf("script %s: %s", name, message)
			return 0
		}},
	}
	state.NewTable()
	lua.SetFunctions(state, helpers, 0)
	state.PushString(name)
	state.SetField(-2, "task")
	state.SetGlobal("storefront")
}
