package models

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a 32-char hex identifier for any inkwell entity.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
