package audit

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSinkStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	trail := NewTrail()
	entry, err := trail.Append(EntryDelivery, "signal-1", "transport.deliver", nil, nil)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO trail_entries").
		WithArgs(entry.EntryID, entry.Sequence, sqlmock.AnyArg(),
			string(entry.EntryType), entry.Subject, entry.Action,
			string(entry.Payload), entry.PayloadHash, entry.PreviousHash, entry.EntryHash).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := NewPostgresSink(db)
	require.NoError(t, sink.Store(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkHead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT entry_hash FROM trail_entries").
		WillReturnRows(sqlmock.NewRows([]string{"entry_hash"}).AddRow("abc123"))

	sink := NewPostgresSink(db)
	head, err := sink.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", head)
}

func TestPostgresSinkHeadEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT entry_hash FROM trail_entries").
		WillReturnRows(sqlmock.NewRows([]string{"entry_hash"}))

	sink := NewPostgresSink(db)
	head, err := sink.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "genesis", head)
}

func TestPostgresSinkCountByType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(string(EntrySignalRejected)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	sink := NewPostgresSink(db)
	n, err := sink.CountByType(context.Background(), EntrySignalRejected)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
