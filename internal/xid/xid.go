package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a random 128-bit identifier, safe to merge across registers.
func New() string {
	return uuid.NewString()
}

// Prefixed is used for ids that are only ever seen locally.
func Prefixed(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
