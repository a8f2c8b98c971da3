package sqlengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe/sqlengine"
	. "github.com/AntonStoeckl/sqlpipe-go/testutil/helper" //nolint:revive
)

var errDriver = errors.New("driver: relation \"books\" does not exist")

func Test_Map_ShouldInvokeConsumerOncePerRow_InCursorOrder_AndCloseOnce(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection()
	pipeline := GivenPipeline(t, conn)

	// arrange
	var titles []string
	consumer := sqlpipe.RowHandlerFunc(func(row sqlpipe.Row) {
		var id, year int64
		var title string
		assert.NoError(t, row.Scan(&id, &title, &year))
		titles = append(titles, title)
	})

	// act
	err := pipeline.Sql(sqlpipe.NewCommand("SELECT id, title, year FROM books")).Map(ctx, consumer)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"The Dispossessed", "The Left Hand of Darkness", "A Wizard of Earthsea"}, titles)
	assert.Equal(t, 1, conn.GetOpenCount())
	assert.Equal(t, 1, conn.GetCloseCount())
}

func Test_Map_ShouldFinishEachRowBeforeFetchingTheNext(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection()
	pipeline := GivenPipeline(t, conn)

	// arrange
	consumed := 0
	consumer := sqlpipe.RowConsumerFunc(func(ctx context.Context, _ sqlpipe.Row) error {
		// a consumer doing its own I/O before returning
		select {
		case <-time.After(time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}

		conn.RecordConsumed(consumed)
		consumed++

		return nil
	})

	// act
	err := pipeline.Sql(sqlpipe.NewCommand("SELECT id, title, year FROM books")).Map(ctx, consumer)

	// assert
	assert.NoError(t, err)
	assert.Equal(t,
		[]string{
			EventOpen, EventQuery,
			EventFetch, "consume:0",
			EventFetch, "consume:1",
			EventFetch, "consume:2",
			EventCloseRows, EventCloseConn,
		},
		conn.GetEvents(),
	)
}

func Test_Map_ShouldNotInvokeConsumer_WithZeroRows(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := NewConnectionSpy(TestDSN).WithColumns("id")
	pipeline := GivenPipeline(t, conn)

	// arrange
	invoked := 0
	consumer := sqlpipe.RowHandlerFunc(func(_ sqlpipe.Row) { invoked++ })

	// act
	err := pipeline.Sql(sqlpipe.NewCommand("SELECT id FROM books WHERE false")).Map(ctx, consumer)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 0, invoked)
	assert.Equal(t, 1, conn.GetCloseCount())
}

func Test_Map_ShouldPropagateOriginalError_AndClose_WithoutErrorHandler(t *testing.T) {
	testCases := []struct {
		name     string
		conn     *ConnectionSpy
		consumer sqlpipe.RowConsumer
		closes   int
	}{
		{
			name:     "open fails",
			conn:     GivenBooksConnection().FailOpenWith(errDriver),
			consumer: &RowCollector{},
			closes:   0,
		},
		{
			name:     "execute fails",
			conn:     GivenBooksConnection().FailQueryWith(errDriver),
			consumer: &RowCollector{},
			closes:   1,
		},
		{
			name:     "fetch fails",
			conn:     GivenBooksConnection().FailIterationWith(errDriver),
			consumer: &RowCollector{},
			closes:   1,
		},
		{
			name: "consumer fails",
			conn: GivenBooksConnection(),
			consumer: sqlpipe.RowConsumerFunc(func(_ context.Context, _ sqlpipe.Row) error {
				return errDriver
			}),
			closes: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			pipeline := GivenPipeline(t, tc.conn)

			// act
			err := pipeline.Sql(sqlpipe.NewCommand("SELECT id, title, year FROM books")).Map(context.Background(), tc.consumer)

			// assert
			assert.Equal(t, errDriver, err, "the original error must not be wrapped")
			assert.Equal(t, 1, tc.conn.GetOpenCount())
			assert.Equal(t, tc.closes, tc.conn.GetCloseCount())
		})
	}
}

func Test_Map_ShouldInvokeErrorHandlerOnce_AndNotReraise(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection().FailQueryWith(errDriver)
	handlerSpy := &ErrorHandlerSpy{}
	pipeline := GivenPipeline(t, conn, sqlengine.WithErrorHandlerBuilder(handlerSpy.Builder()))

	// arrange
	cmd := sqlpipe.NewCommand("SELECT id, title, year FROM books")

	// act
	err := pipeline.Sql(cmd).Map(ctx, &RowCollector{})

	// assert
	assert.NoError(t, err)
	assert.Equal(t, []error{errDriver}, handlerSpy.GetErrors())
	assert.Equal(t, []*sqlpipe.Command{cmd}, handlerSpy.GetCommands(), "the handler must be built for the failing command")
	assert.Equal(t, 1, conn.GetCloseCount())
}

func Test_Map_ShouldPropagate_WhenErrorHandlerBuilderYieldsNoHandler(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection().FailQueryWith(errDriver)
	noHandler := sqlpipe.ErrorHandlerBuilderFunc(func(_ *sqlpipe.Command) sqlpipe.ErrorHandler { return nil })
	pipeline := GivenPipeline(t, conn, sqlengine.WithErrorHandlerBuilder(noHandler))

	// act
	err := pipeline.Sql(sqlpipe.NewCommand("SELECT 1")).Map(ctx, &RowCollector{})

	// assert
	assert.Equal(t, errDriver, err)
	assert.Equal(t, 1, conn.GetCloseCount())
}

func Test_Map_ShouldFailBeforeOpening_WithBlankCommandText(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection()
	handlerSpy := &ErrorHandlerSpy{}
	pipeline := GivenPipeline(t, conn, sqlengine.WithErrorHandlerBuilder(handlerSpy.Builder()))

	for _, text := range []string{"", "  ", "\n\t"} {
		// act
		err := pipeline.Sql(sqlpipe.NewCommand(text)).Map(ctx, &RowCollector{})

		// assert
		assert.ErrorIs(t, err, sqlpipe.ErrBlankCommandText)
	}

	assert.Equal(t, 0, conn.GetOpenCount(), "no connection open attempt expected")
	assert.Empty(t, handlerSpy.GetErrors(), "configuration errors never reach the error handler")
}

func Test_Map_ShouldFail_WithoutCommand(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection()
	pipeline := GivenPipeline(t, conn)

	// act
	errWithoutSql := pipeline.Map(ctx, &RowCollector{})
	errWithNilSql := pipeline.Sql(nil).Param("id", sqlpipe.DBTypeInt64, 1).Map(ctx, &RowCollector{})

	// assert
	assert.ErrorIs(t, errWithoutSql, sqlpipe.ErrNoCommand)
	assert.ErrorIs(t, errWithNilSql, sqlpipe.ErrNoCommand)
	assert.Equal(t, 0, conn.GetOpenCount())
}

func Test_Map_ShouldFail_WithNilConsumer(t *testing.T) {
	// setup
	conn := GivenBooksConnection()
	pipeline := GivenPipeline(t, conn)

	// act
	err := pipeline.Sql(sqlpipe.NewCommand("SELECT 1")).Map(context.Background(), nil)

	// assert
	assert.ErrorIs(t, err, sqlpipe.ErrNilRowConsumer)
	assert.Equal(t, 0, conn.GetOpenCount())
}

func Test_Map_ShouldConsumeTheBoundCommand(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection()
	pipeline := GivenPipeline(t, conn)

	// act
	firstErr := pipeline.Sql(sqlpipe.NewCommand("SELECT id, title, year FROM books")).Map(ctx, &RowCollector{})
	secondErr := pipeline.Map(ctx, &RowCollector{})

	// assert
	assert.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, sqlpipe.ErrNoCommand)
	assert.Equal(t, 1, conn.GetOpenCount())
}

func Test_Map_ShouldBindNamedParameters_InAnyChainOrder(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection()
	pipeline := GivenPipeline(t, conn)

	// act
	err := pipeline.
		Param("author", sqlpipe.DBTypeString, "Ursula K. Le Guin").
		Sql(sqlpipe.NewCommand("SELECT id, title, year FROM books WHERE author = :author AND year > :year")).
		Param("year", sqlpipe.DBTypeInt32, 1960).
		Map(ctx, &RowCollector{})

	// assert
	assert.NoError(t, err)
	assert.Equal(t,
		[]RecordedStatement{{
			Query: "SELECT id, title, year FROM books WHERE author = ? AND year > ?",
			Args:  []any{"Ursula K. Le Guin", int32(1960)},
		}},
		conn.GetStatements(),
	)
}

func Test_Map_ShouldRebindParameters_ToTheSessionBindStyle(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection().WithBindType(sqlx.DOLLAR)
	pipeline := GivenPipeline(t, conn)

	// act
	err := pipeline.
		Sql(sqlpipe.NewCommand("SELECT id FROM books WHERE title = :title")).
		Param("title", sqlpipe.DBTypeString, "Tehanu", 3).
		Map(ctx, &RowCollector{})

	// assert
	assert.NoError(t, err)
	assert.Equal(t,
		[]RecordedStatement{{Query: "SELECT id FROM books WHERE title = $1", Args: []any{"Teh"}}},
		conn.GetStatements(),
		"the string parameter must be truncated to its size",
	)
}

func Test_Map_ShouldRouteDuplicateParameters_ThroughTheErrorHandler(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection()
	handlerSpy := &ErrorHandlerSpy{}
	pipeline := GivenPipeline(t, conn, sqlengine.WithErrorHandlerBuilder(handlerSpy.Builder()))

	// act
	err := pipeline.
		Sql(sqlpipe.NewCommand("SELECT id FROM books WHERE id = :id")).
		Param("id", sqlpipe.DBTypeInt64, 1).
		Param("id", sqlpipe.DBTypeInt64, 2).
		Map(ctx, &RowCollector{})

	// assert
	assert.NoError(t, err)
	if assert.Len(t, handlerSpy.GetErrors(), 1) {
		assert.ErrorIs(t, handlerSpy.GetErrors()[0], sqlpipe.ErrDuplicateParameter)
	}
	assert.Empty(t, conn.GetStatements(), "nothing must be sent to the database")
	assert.Equal(t, 1, conn.GetCloseCount())
}

func Test_Map_ShouldApplyTheCommandModifier_BeforeExecution(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection()
	modifier := func(cmd *sqlpipe.Command) *sqlpipe.Command {
		return cmd.WithText("/* pipeline */ " + cmd.Text())
	}
	pipeline := GivenPipeline(t, conn, sqlengine.WithCommandModifier(modifier))

	// act
	err := pipeline.Sql(sqlpipe.NewCommand("SELECT id, title, year FROM books")).Map(ctx, &RowCollector{})

	// assert
	assert.NoError(t, err)
	assert.Equal(t, "/* pipeline */ SELECT id, title, year FROM books", conn.GetStatements()[0].Query)
}

func Test_Map_ShouldRouteNilFromCommandModifier_ThroughTheErrorHandler(t *testing.T) {
	// setup
	ctx := context.Background()
	conn := GivenBooksConnection()
	dropAll := func(_ *sqlpipe.Command) *sqlpipe.Command { return nil }
	pipeline := GivenPipeline(t, conn, sqlengine.WithCommandModifier(dropAll))

	// act
	err := pipeline.Sql(sqlpipe.NewCommand("SELECT 1")).Map(ctx, &RowCollector{})

	// assert
	assert.ErrorIs(t, err, sqlpipe.ErrCommandModifierReturnedNil)
	assert.Equal(t, 0, conn.GetOpenCount())
}

func Test_Map_ShouldUseTheCommandConnectionOverride(t *testing.T) {
	// setup
	ctx := context.Background()
	pipelineConn := GivenBooksConnection()
	overrideConn := GivenBooksConnection()
	pipeline := GivenPipeline(t, pipelineConn)

	// arrange
	collector := &RowCollector{}
	cmd := sqlpipe.NewCommand("SELECT id, title, year FROM books").WithConnection(overrideConn)

	// act
	err := pipeline.Sql(cmd).Map(ctx, collector)

	// assert
	assert.NoError(t, err)
	assert.Len(t, collector.GetRows(), 3)
	assert.Equal(t, 0, pipelineConn.GetOpenCount())
	assert.Equal(t, 1, overrideConn.GetOpenCount())
	assert.Equal(t, 1, overrideConn.GetCloseCount())
}

func Test_Map_ShouldBindThePipelineConnection_ToTheCommand(t *testing.T) {
	// setup
	conn := GivenBooksConnection()
	pipeline := GivenPipeline(t, conn)

	// arrange
	cmd := sqlpipe.NewCommand("SELECT id, title, year FROM books")

	// act
	err := pipeline.Sql(cmd).Map(context.Background(), &RowCollector{})

	// assert
	assert.NoError(t, err)
	assert.Equal(t, sqlpipe.Connection(conn), cmd.Connection())
}

func Test_Map_ShouldApplyTheCommandTimeout(t *testing.T) {
	// setup
	conn := GivenBooksConnection()
	pipeline := GivenPipeline(t, conn)

	// arrange
	blockingConsumer := sqlpipe.RowConsumerFunc(func(ctx context.Context, _ sqlpipe.Row) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		<-ctx.Done()

		return ctx.Err()
	})
	cmd := sqlpipe.NewCommand("SELECT id, title, year FROM books").WithTimeout(10 * time.Millisecond)

	// act
	err := pipeline.Sql(cmd).Map(context.Background(), blockingConsumer)

	// assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, conn.GetCloseCount())
}

func Test_Map_ShouldStillClose_WhenConsumerPanics(t *testing.T) {
	// setup
	conn := GivenBooksConnection()
	pipeline := GivenPipeline(t, conn)

	// arrange
	panickingConsumer := sqlpipe.RowHandlerFunc(func(_ sqlpipe.Row) { panic("consumer bug") })

	// act
	act := func() {
		_ = pipeline.Sql(sqlpipe.NewCommand("SELECT id, title, year FROM books")).Map(context.Background(), panickingConsumer)
	}

	// assert
	assert.PanicsWithValue(t, "consumer bug", act)
	assert.Equal(t, 1, conn.GetCloseCount())
}

func Test_Map_ShouldKeepTheExecutionError_WhenCloseFailsToo(t *testing.T) {
	// setup
	errClose := errors.New("close failed")
	conn := GivenBooksConnection().FailQueryWith(errDriver).FailCloseWith(errClose)
	pipeline := GivenPipeline(t, conn)

	// act
	err := pipeline.Sql(sqlpipe.NewCommand("SELECT 1")).Map(context.Background(), &RowCollector{})

	// assert
	assert.Equal(t, errDriver, err)
}

func Test_Map_ShouldReturnTheCloseError_WhenTheCallOtherwiseSucceeded(t *testing.T) {
	// setup
	errClose := errors.New("close failed")
	conn := GivenBooksConnection().FailCloseWith(errClose)
	pipeline := GivenPipeline(t, conn)

	// act
	err := pipeline.Sql(sqlpipe.NewCommand("SELECT id, title, year FROM books")).Map(context.Background(), &RowCollector{})

	// assert
	assert.Equal(t, errClose, err)
}

func Test_MapSQL_ShouldWrapTheTextIntoAFreshCommand(t *testing.T) {
	// setup
	conn := GivenBooksConnection()
	pipeline := GivenPipeline(t, conn)

	// arrange
	collector := &RowCollector{}

	// act
	err := pipeline.MapSQL(
		context.Background(),
		"SELECT id, title, year FROM books WHERE id > :id",
		collector,
		sqlpipe.NewParameter("id", sqlpipe.DBTypeInt64, 0, 0),
	)

	// assert
	assert.NoError(t, err)
	assert.Equal(t,
		[][]any{
			{int64(1), "The Dispossessed", int64(1974)},
			{int64(2), "The Left Hand of Darkness", int64(1969)},
			{int64(3), "A Wizard of Earthsea", int64(1968)},
		},
		collector.GetRows(),
	)
	assert.Equal(t, []any{int64(0)}, conn.GetStatements()[0].Args)
}
