// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package template

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"
)

// Context is an ordered set of name bindings with an optional parent scope.
// Lookups that miss in a Context continue in its parent, so a child sees all
// of its parent's bindings except those it shadows. Writes only ever touch
// the receiver's own bindings.
//
// A Context is safe for concurrent use.
type Context struct {
	parent *Context

	mu    sync.RWMutex
	names []string // insertion order
	vals  map[string]Value
}

// NewContext returns an empty top-level Context.
func NewContext() *Context {
	return &Context{vals: map[string]Value{}}
}

// Child returns a new empty Context whose parent is c.
func (c *Context) Child() *Context {
	return &Context{parent: c, vals: map[string]Value{}}
}

// Parent returns the enclosing scope, or nil for a top-level Context.
func (c *Context) Parent() *Context { return c.parent }

// Set binds name to v in this scope. Rebinding a name keeps its original
// position in Keys.
func (c *Context) Set(name string, v Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.vals[name]; !ok {
		c.names = append(c.names, name)
	}
	c.vals[name] = v
}

// SetAny converts x with ValueOf and binds it to name.
func (c *Context) SetAny(name string, x any) error {
	v, err := ValueOf(x)
	if err != nil {
		return err
	}
	c.Set(name, v)
	return nil
}

// SetAll converts and binds every entry of vars in sorted key order. It
// stops at the first value ValueOf rejects, leaving earlier keys bound.
func (c *Context) SetAll(vars map[string]any) error {
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		if err := c.SetAny(k, vars[k]); err != nil {
			return fmt.Errorf("template: binding %q: %w", k, err)
		}
	}
	return nil
}

// Unset removes name from this scope. Bindings of the same name in enclosing
// scopes become visible again.
func (c *Context) Unset(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.vals[name]; !ok {
		return
	}
	delete(c.vals, name)
	c.names = slices.DeleteFunc(c.names, func(n string) bool { return n == name })
}

// Lookup returns the value bound to name in the nearest enclosing scope.
func (c *Context) Lookup(name string) (Value, bool) {
	for s := c; s != nil; s = s.parent {
		s.mu.RLock()
		v, ok := s.vals[name]
		s.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return Value{}, false
}

// Has reports whether name is visible from c.
func (c *Context) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Len returns the number of bindings in this scope, excluding parents.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Keys returns the names bound in this scope in insertion order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.names)
}

// All iterates over this scope's bindings in insertion order. It works on a
// copy, so the Context may be modified during iteration.
func (c *Context) All() iter.Seq2[string, Value] {
	c.mu.RLock()
	names := slices.Clone(c.names)
	vals := make([]Value, len(names))
	for i, n := range names {
		vals[i] = c.vals[n]
	}
	c.mu.RUnlock()
	return func(yield func(string, Value) bool) {
		for i, n := range names {
			if !yield(n, vals[i]) {
				return
			}
		}
	}
}

// Snapshot flattens every binding visible from c into a map.
func (c *Context) Snapshot() map[string]Value {
	var chain []*Context
	for s := c; s != nil; s = s.parent {
		chain = append(chain, s)
	}
	out := map[string]Value{}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].All() {
			out[k] = v
		}
	}
	return out
}
