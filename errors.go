package hookmgr

import "errors"

var (
	// ErrAllocation means memory for the trampoline or redirect could not be reserved.
	ErrAllocation = errors.New("failed to allocate memory for hook")
	// ErrDecode means the instruction stream near the patch point could not be decoded.
	ErrDecode = errors.New("failed to decode instruction at target")
	// ErrUnprotect means page protection could not be changed for a patch or restore.
	ErrUnprotect = errors.New("failed to change memory protection")
	// ErrNotEnoughSpace means there is no room for the redirect or trampoline,
	// including the short-jump variant.
	ErrNotEnoughSpace = errors.New("not enough space at target for hook")
	// ErrUnsupported means an instruction incompatible with relocation falls
	// inside the patched region.
	ErrUnsupported = errors.New("unsupported instruction in trampoline")
	// ErrIPRelative means a relocated instruction's address-relative operand
	// falls out of range after relocation.
	ErrIPRelative = errors.New("ip-relative instruction out of range")
	// ErrInvalid means bad arguments or an unknown handle for a mutating call.
	ErrInvalid = errors.New("invalid handle or parameter")
)

// Code is the flat result code carried across the boundary surface. Callers
// on the far side of a foreign-function boundary inspect a plain integer
// instead of unwrapping Go errors.
type Code int

const (
	Success Code = iota
	CodeAllocation
	CodeDecode
	CodeUnprotect
	CodeNotEnoughSpace
	CodeUnsupported
	CodeIPRelative
	CodeInvalid
)

func (c Code) String() string {
	switch c {
	case Success:
		return "Success"
	case CodeAllocation:
		return "Failed to allocate memory for hook"
	case CodeDecode:
		return "Failed to decode instruction at target"
	case CodeUnprotect:
		return "Failed to change memory protection"
	case CodeNotEnoughSpace:
		return "Not enough space at target for hook"
	case CodeUnsupported:
		return "Unsupported instruction in trampoline"
	case CodeIPRelative:
		return "IP-relative instruction out of range"
	default:
		return "Invalid handle or parameter"
	}
}

// Err returns the sentinel error corresponding to the code, or nil for Success.
func (c Code) Err() error {
	switch c {
	case Success:
		return nil
	case CodeAllocation:
		return ErrAllocation
	case CodeDecode:
		return ErrDecode
	case CodeUnprotect:
		return ErrUnprotect
	case CodeNotEnoughSpace:
		return ErrNotEnoughSpace
	case CodeUnsupported:
		return ErrUnsupported
	case CodeIPRelative:
		return ErrIPRelative
	default:
		return ErrInvalid
	}
}

// CodeOf maps an error returned by this package to its result code.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrAllocation):
		return CodeAllocation
	case errors.Is(err, ErrDecode):
		return CodeDecode
	case errors.Is(err, ErrUnprotect):
		return CodeUnprotect
	case errors.Is(err, ErrNotEnoughSpace):
		return CodeNotEnoughSpace
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	case errors.Is(err, ErrIPRelative):
		return CodeIPRelative
	default:
		return CodeInvalid
	}
}
