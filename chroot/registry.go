package chroot

import (
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Func is a closure run inside the changed root. It returns a value to be
// CBOR encoded and files to hand back to the parent.
type Func func(arg cbor.RawMessage) (any, []*os.File, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Func)
)

// Register makes fn callable by name. It panics if name is registered twice.
func Register(name string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("chroot: %s registered twice", name))
	}
	registry[name] = fn
}

// RegisterFunc registers a typed closure returning a value
func RegisterFunc[A, R any](name string, fn func(A) (R, error)) {
	Register(name, func(raw cbor.RawMessage) (any, []*os.File, error) {
		var a A
		if err := cbor.Unmarshal(raw, &a); err != nil {
			return nil, nil, fmt.Errorf("%s: decode argument: %w", name, err)
		}
		r, err := fn(a)
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil
	})
}

// RegisterFile registers a typed closure returning an open file
func RegisterFile[A any](name string, fn func(A) (*os.File, error)) {
	Register(name, func(raw cbor.RawMessage) (any, []*os.File, error) {
		var a A
		if err := cbor.Unmarshal(raw, &a); err != nil {
			return nil, nil, fmt.Errorf("%s: decode argument: %w", name, err)
		}
		f, err := fn(a)
		if err != nil {
			return nil, nil, err
		}
		return nil, []*os.File{f}, nil
	})
}

func lookup(name string) (Func, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}
