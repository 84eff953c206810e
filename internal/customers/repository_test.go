package customers

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectQuery(`SELECT id, name, email FROM users WHERE id = \$1`).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow("u1", "Ada", "ada@example.com"))
	mock.ExpectQuery(`SELECT id, name, email FROM users WHERE id = \$1`).WithArgs("u2").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)

	u, err = repo.FindByID(context.Background(), "u2")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, mock.ExpectationsWereMet())
}
