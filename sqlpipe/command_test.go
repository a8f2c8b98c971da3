package sqlpipe

import (
	"errors"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

type failingBuilder struct{}

func (failingBuilder) ToSQL() (string, []any, error) {
	return "", nil, errors.New("no table")
}

func Test_Command_Bind_ShouldRebindNamedParameters(t *testing.T) {
	tests := []struct {
		name          string
		bindType      int
		expectedQuery string
	}{
		{"question", sqlx.QUESTION, "SELECT * FROM books WHERE author = ? AND published > ?"},
		{"dollar", sqlx.DOLLAR, "SELECT * FROM books WHERE author = $1 AND published > $2"},
		{"named", sqlx.NAMED, "SELECT * FROM books WHERE author = :arg1 AND published > :arg2"},
		{"at", sqlx.AT, "SELECT * FROM books WHERE author = @p1 AND published > @p2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// arrange
			cmd := NewCommand("SELECT * FROM books WHERE author = :author AND published > :year").
				Param("year", DBTypeInt32, 1960, 0).
				Param("author", DBTypeString, "Le Guin", 0)

			// act
			query, args, err := cmd.Bind(tt.bindType)

			// assert
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedQuery, query)
			assert.Equal(t, []any{"Le Guin", int32(1960)}, args, "args follow the placeholder order, not the parameter order")
		})
	}
}

func Test_Command_Bind_ShouldPassTextThrough_WithoutParameters(t *testing.T) {
	// arrange
	cmd := NewCommand("SELECT 1")

	// act
	query, args, err := cmd.Bind(sqlx.DOLLAR)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, "SELECT 1", query)
	assert.Empty(t, args)
}

func Test_Command_Bind_ShouldFail_WithDuplicateParameterNames(t *testing.T) {
	// arrange
	cmd := NewCommand("SELECT * FROM books WHERE id = :id").
		Param("id", DBTypeInt64, 1, 0).
		Param("id", DBTypeInt64, 2, 0)

	// act
	_, _, err := cmd.Bind(sqlx.QUESTION)

	// assert
	assert.ErrorIs(t, err, ErrDuplicateParameter)
	assert.ErrorContains(t, err, `"id"`)
}

func Test_Command_Bind_ShouldFail_WithMissingParameter(t *testing.T) {
	// arrange
	cmd := NewCommand("SELECT * FROM books WHERE id = :id AND title = :title").
		Param("id", DBTypeInt64, 1, 0)

	// act
	_, _, err := cmd.Bind(sqlx.QUESTION)

	// assert
	assert.ErrorIs(t, err, ErrBindingParametersFailed)
}

func Test_Command_Bind_ShouldFail_WithInvalidParameterValue(t *testing.T) {
	// arrange
	cmd := NewCommand("SELECT * FROM books WHERE id = :id").
		Param("id", DBTypeGuid, "no-guid", 0)

	// act
	_, _, err := cmd.Bind(sqlx.QUESTION)

	// assert
	assert.ErrorIs(t, err, ErrInvalidParameterValue)
}

func Test_CommandFromSQLBuilder_ShouldCarryPositionalArgs(t *testing.T) {
	// arrange
	dataset := goqu.Dialect("postgres").From("books").Where(goqu.Ex{"id": 1}).Prepared(true)

	// act
	cmd, err := CommandFromSQLBuilder(dataset)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "books" WHERE ("id" = $1)`, cmd.Text())
	assert.Equal(t, []any{int64(1)}, cmd.Args())

	query, args, bindErr := cmd.Bind(sqlx.DOLLAR)
	assert.NoError(t, bindErr)
	assert.Equal(t, cmd.Text(), query)
	assert.Equal(t, cmd.Args(), args)
}

func Test_CommandFromSQLBuilder_ShouldInlineValues_WhenNotPrepared(t *testing.T) {
	// act
	cmd, err := CommandFromSQLBuilder(goqu.Dialect("postgres").From("books").Where(goqu.Ex{"id": 1}))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "books" WHERE ("id" = 1)`, cmd.Text())
	assert.Empty(t, cmd.Args())
}

func Test_CommandFromSQLBuilder_ShouldFail_WhenTheBuilderFails(t *testing.T) {
	// act
	cmd, err := CommandFromSQLBuilder(failingBuilder{})

	// assert
	assert.ErrorIs(t, err, ErrBuildingCommandFailed)
	assert.Nil(t, cmd)
}

func Test_Command_Bind_ShouldFail_WhenMixingParameterStyles(t *testing.T) {
	// arrange
	cmd, err := CommandFromSQLBuilder(goqu.Dialect("postgres").From("books").Where(goqu.Ex{"id": 1}).Prepared(true))
	assert.NoError(t, err)
	cmd.Param("title", DBTypeString, "Tehanu", 0)

	// act
	_, _, bindErr := cmd.Bind(sqlx.DOLLAR)

	// assert
	assert.ErrorIs(t, bindErr, ErrMixedParameterStyles)
}

func Test_Command_Builders_ShouldReturnTheSameCommand(t *testing.T) {
	// arrange
	cmd := NewCommand("SELECT 1")

	// act
	chained := cmd.WithTimeout(time.Second).WithText("SELECT 2").AddParameter(NewParameter("a", DBTypeInt64, 1, 0))

	// assert
	assert.Same(t, cmd, chained)
	assert.Equal(t, "SELECT 2", cmd.Text())
	assert.Equal(t, time.Second, cmd.Timeout())
	assert.Len(t, cmd.Parameters(), 1)
	assert.True(t, cmd.HasText())
	assert.False(t, NewCommand(" \t").HasText())
}
