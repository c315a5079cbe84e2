package gormpersistence

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"whiteboard-relay/internal/repository"
)

func TestMapRepoError(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'r1' for key 'PRIMARY'"}
	assert.ErrorIs(t, mapRepoError(dup, "op"), repository.ErrDuplicateEntry)

	other := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	err := mapRepoError(other, "gorm: save")
	assert.NotErrorIs(t, err, repository.ErrDuplicateEntry)
	assert.Contains(t, err.Error(), "gorm: save")

	translated := mapRepoError(gorm.ErrDuplicatedKey, "gorm: save")
	assert.ErrorIs(t, translated, repository.ErrDuplicateEntry)
	assert.Contains(t, translated.Error(), "gorm: save")

	plain := errors.New("boom")
	assert.ErrorIs(t, mapRepoError(plain, "op"), plain)
}
