// Package objsym reads symbol tables out of object files so hook targets
// can be located by name instead of hardcoded addresses.
package objsym

import (
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
)

type rawFile interface {
	Symbols() (map[string]uintptr, error)
}

var openers = []func(io.ReaderAt) (rawFile, error){
	openElf,
	openMacho,
	openPE,
}

// ReadSymbols returns the symbol table of the object file at path, mapping
// symbol names to their link-time values.
func ReadSymbols(path string) (map[string]uintptr, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, open := range openers {
		raw, err := open(r)
		if err != nil {
			log.Debugf("objsym: %s: %v", path, err)
			continue
		}
		return raw.Symbols()
	}
	return nil, fmt.Errorf("open %s: unrecognized object file", path)
}
