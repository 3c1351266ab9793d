package declaration

import (
	"errors"
	"fmt"
)

var (
	ErrDeclarationNotFound = errors.New("declaration not found")
	ErrInvalidTransition   = errors.New("invalid declaration status transition")
	ErrNotValid            = errors.New("declaration failed validation")
	ErrNotDraft            = errors.New("declaration is no longer a draft")
	ErrNilDeclaration      = errors.New("nil declaration")
	ErrDocumentNotFound    = errors.New("declaration document not found")
)

// EntryError describes a (profile, calculation) pair that cannot become a
// declaration line.
type EntryError struct {
	Index      int
	EmployeeID string
	Reason     string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("declaration: entry %d (%s): %s", e.Index, e.EmployeeID, e.Reason)
}
