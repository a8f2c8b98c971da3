package sqlengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe/sqlengine"
	. "github.com/AntonStoeckl/sqlpipe-go/testutil/helper" //nolint:revive
)

func Test_Exec_ShouldReportRowsAffected_AndCloseOnce(t *testing.T) {
	// setup
	conn := NewConnectionSpy(TestDSN).WithRowsAffected(3)
	pipeline := GivenPipeline(t, conn)

	// act
	rowsAffected, err := pipeline.ExecSQL(
		context.Background(),
		"DELETE FROM books WHERE year < :year",
		sqlpipe.NewParameter("year", sqlpipe.DBTypeInt32, 1970, 0),
	)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, int64(3), rowsAffected)
	assert.Equal(t,
		[]RecordedStatement{{Query: "DELETE FROM books WHERE year < ?", Args: []any{int32(1970)}}},
		conn.GetStatements(),
	)
	assert.Equal(t, []string{EventOpen, EventExec, EventCloseConn}, conn.GetEvents())
}

func Test_Exec_ShouldPropagateOriginalError_WithoutErrorHandler(t *testing.T) {
	// setup
	conn := NewConnectionSpy(TestDSN).FailExecWith(errDriver)
	pipeline := GivenPipeline(t, conn)

	// act
	rowsAffected, err := pipeline.Exec(context.Background(), sqlpipe.NewCommand("DELETE FROM books"))

	// assert
	assert.Equal(t, errDriver, err)
	assert.Equal(t, int64(0), rowsAffected)
	assert.Equal(t, 1, conn.GetCloseCount())
}

func Test_Exec_ShouldReportZeroRows_WhenTheFailureWasHandled(t *testing.T) {
	// setup
	conn := NewConnectionSpy(TestDSN).FailExecWith(errDriver)
	handlerSpy := &ErrorHandlerSpy{}
	pipeline := GivenPipeline(t, conn, sqlengine.WithErrorHandlerBuilder(handlerSpy.Builder()))

	// act
	rowsAffected, err := pipeline.Exec(context.Background(), sqlpipe.NewCommand("DELETE FROM books"))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, int64(0), rowsAffected)
	assert.Equal(t, []error{errDriver}, handlerSpy.GetErrors())
	assert.Equal(t, 1, conn.GetCloseCount())
}

func Test_Exec_ShouldFailBeforeOpening_WithoutCommand(t *testing.T) {
	// setup
	conn := NewConnectionSpy(TestDSN)
	pipeline := GivenPipeline(t, conn)

	// act
	_, errNilCommand := pipeline.Exec(context.Background(), nil)
	_, errBlankSQL := pipeline.ExecSQL(context.Background(), "")

	// assert
	assert.ErrorIs(t, errNilCommand, sqlpipe.ErrNoCommand)
	assert.ErrorIs(t, errBlankSQL, sqlpipe.ErrBlankCommandText)
	assert.Equal(t, 0, conn.GetOpenCount())
}
