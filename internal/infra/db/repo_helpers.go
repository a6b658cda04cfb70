package db

import (
	"errors"

	"github.com/google/uuid"
)

var errDBUnavailable = errors.New("db unavailable")

func newUUID() string {
	return uuid.NewString()
}

func stringPtrIfNotEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
