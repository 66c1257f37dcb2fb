package hookmgr

import (
	"fmt"

	"github.com/k2io/hookmgr/internal/objsym"
)

// ReadSymbols returns the symbol table of the object file at path.
func ReadSymbols(path string) (map[string]uintptr, error) {
	return objsym.ReadSymbols(path)
}

// ResolveSymbol looks up one symbol's value in the object file at path.
// The value is the link-time address; callers loading relocated images must
// add the load bias themselves.
func ResolveSymbol(path, name string) (uintptr, error) {
	syms, err := objsym.ReadSymbols(path)
	if err != nil {
		return 0, err
	}
	addr, ok := syms[name]
	if !ok {
		return 0, fmt.Errorf("%w: symbol %q not found in %s", ErrInvalid, name, path)
	}
	return addr, nil
}
