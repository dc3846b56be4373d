package secure

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Env is a set of environment variables whose values are kept in
// enclaves until a child process is spawned.
type Env struct {
	mu   sync.RWMutex
	vars map[string]*SecureBuffer
}

// NewEnv returns an empty Env.
func NewEnv() *Env {
	return &Env{vars: make(map[string]*SecureBuffer)}
}

// Set seals value under name, replacing and destroying any earlier value.
func (e *Env) Set(name, value string) {
	buf := NewSecureBuffer([]byte(value))

	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.vars[name]; ok {
		old.Destroy()
	}
	e.vars[name] = buf
}

// Len returns the number of variables. A nil Env is empty.
func (e *Env) Len() int {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.vars)
}

// Names returns the variable names, sorted.
func (e *Env) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Each opens every value in name order and passes the plaintext to fn.
// The plaintext is wiped when fn returns, so fn must not retain it.
func (e *Env) Each(fn func(name string, value []byte) error) error {
	for _, name := range e.Names() {
		e.mu.RLock()
		buf := e.vars[name]
		e.mu.RUnlock()
		if buf == nil {
			continue
		}

		locked, err := buf.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		err = fn(name, locked.Bytes())
		locked.Destroy()
		if err != nil {
			return err
		}
	}
	return nil
}

// Environ overlays the variables onto base (KEY=VALUE form). A variable
// present in both takes the value held in e.
func (e *Env) Environ(base []string) ([]string, error) {
	out := make([]string, 0, len(base)+e.Len())
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		e.mu.RLock()
		_, override := e.vars[name]
		e.mu.RUnlock()
		if !override {
			out = append(out, kv)
		}
	}
	err := e.Each(func(name string, value []byte) error {
		out = append(out, name+"="+string(value))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Destroy drops every enclave. The Env is empty afterwards.
func (e *Env) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, buf := range e.vars {
		buf.Destroy()
		delete(e.vars, name)
	}
}
