package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AlibekovAA/userstore/internal/common/constants"
	"github.com/AlibekovAA/userstore/internal/user/repository"
)

var (
	ErrBlankID        = errors.New("user id is blank")
	ErrIDTooLong      = fmt.Errorf("user id exceeds %d bytes", constants.MaxUserIDLength)
	ErrIDNotPrintable = errors.New("user id contains non-printable characters")
)

// ValidateID reports why id cannot identify a user. Failures are conversion
// errors, the same kind a store returns for an unusable record.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return repository.Conversion(ErrBlankID)
	}
	if len(id) > constants.MaxUserIDLength {
		return repository.Conversion(ErrIDTooLong)
	}
	if !utf8.ValidString(id) {
		return repository.Conversion(ErrIDNotPrintable)
	}
	for _, r := range id {
		if !unicode.IsPrint(r) {
			return repository.Conversion(ErrIDNotPrintable)
		}
	}
	return nil
}
