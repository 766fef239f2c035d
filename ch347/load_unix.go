//go:build darwin || freebsd || linux

package ch347

import (
	"github.com/ebitengine/purego"
)

// Candidate file names, tried in order. The vendor ships the driver as
// libch347.so (libch347.dylib on macOS); some distributions install a
// versioned name only.
var libraryNames = []string{"libch347.so", "libch347.so.1", "libch347.dylib"}

func loadLibrary(name string) (*Library, error) {
	h, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}

	lib := &Library{handle: h}
	lib.register(func(fptr interface{}, sym string) {
		addr, err := purego.Dlsym(h, sym)
		if err != nil || addr == 0 {
			return
		}
		purego.RegisterFunc(fptr, addr)
	})

	return lib, nil
}

func (l *Library) close() error {
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	return err
}
