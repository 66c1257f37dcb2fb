package objsym

import (
	"debug/pe"
	"io"
)

type peFile struct {
	f *pe.File
}

func openPE(r io.ReaderAt) (rawFile, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &peFile{f}, nil
}

func (p *peFile) Symbols() (map[string]uintptr, error) {
	out := make(map[string]uintptr, len(p.f.Symbols))
	for _, s := range p.f.Symbols {
		out[s.Name] = uintptr(s.Value)
	}
	return out, nil
}
