package objsym

import (
	"debug/macho"
	"io"
)

type machoFile struct {
	f *macho.File
}

func openMacho(r io.ReaderAt) (rawFile, error) {
	f, err := macho.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &machoFile{f}, nil
}

func (m *machoFile) Symbols() (map[string]uintptr, error) {
	if m.f.Symtab == nil {
		return nil, nil
	}
	out := make(map[string]uintptr, len(m.f.Symtab.Syms))
	for _, s := range m.f.Symtab.Syms {
		out[s.Name] = uintptr(s.Value)
	}
	return out, nil
}
