//go:build windows

package ch347

import (
	"github.com/ebitengine/purego"
	"golang.org/x/sys/windows"
)

// Candidate file names, tried in order. CH347DLLA64.DLL is the 64-bit build
// some vendor packages install under its own name.
var libraryNames = []string{"CH347DLL.DLL", "CH347DLLA64.DLL"}

func loadLibrary(name string) (*Library, error) {
	h, err := windows.LoadLibrary(name)
	if err != nil {
		return nil, err
	}

	lib := &Library{handle: uintptr(h)}
	lib.register(func(fptr interface{}, sym string) {
		addr, err := windows.GetProcAddress(h, sym)
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
	err := windows.FreeLibrary(windows.Handle(l.handle))
	l.handle = 0
	return err
}
