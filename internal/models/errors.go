package models

import "fmt"

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrMachOParse ErrorType = iota
	ErrStubGen
	ErrArchive
	ErrSymlink
	ErrSigning
	ErrFileOp
	ErrInvalidConfig
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrMachOParse:
		return "MachOParse"
	case ErrStubGen:
		return "StubGen"
	case ErrArchive:
		return "Archive"
	case ErrSymlink:
		return "Symlink"
	case ErrSigning:
		return "Signing"
	case ErrFileOp:
		return "FileOp"
	case ErrInvalidConfig:
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}

// SdkGenError represents an error during SDK generation
type SdkGenError struct {
	Type  ErrorType
	Input string
	Err   error
}

// Error implements the error interface
func (e *SdkGenError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Input, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *SdkGenError) Unwrap() error {
	return e.Err
}
