package database

import (
	"testing"

	"promptguard/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesViolation(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*models.Violation); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include Violation")
}
