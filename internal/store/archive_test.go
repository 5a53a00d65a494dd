package store

import (
	"context"
	"io"
	"math"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ttp/internal/clock"
	"github.com/roach88/ttp/internal/testutil"
	"github.com/roach88/ttp/internal/ttp"
)

func TestSaveSession_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	records := []ttp.Record{
		{ID: 5, Context: 0, Timestamp: 1000},
		{ID: 7, Context: 0, Timestamp: 2000},
		{ID: 3, Context: 1, Timestamp: math.MaxUint64},
	}
	sess, err := s.SaveSession(ctx, testSession("s1", 10), records)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sess.Events)

	got, err := s.ReadEvents(ctx, "s1", -1)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	ctx1, err := s.ReadEvents(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, records[2:], ctx1)

	meta, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, sess, meta)
}

func TestBeginSession_GeneratesUUIDv7(t *testing.T) {
	s := createTestStore(t)

	w, err := s.BeginSession(context.Background(), Session{Source: "test", Clock: "realtime"})
	require.NoError(t, err)
	sess, err := w.Commit()
	require.NoError(t, err)

	id, err := uuid.Parse(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotZero(t, sess.CreatedAt)
}

func TestBeginSession_FixedIDGenerator(t *testing.T) {
	s := createTestStore(t)
	s.SetIDGenerator(testutil.NewFixedIDGenerator("fixed-1"))

	sess, err := s.SaveSession(context.Background(), Session{Source: "test", Clock: "unset", CreatedAt: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fixed-1", sess.ID)
	assert.Zero(t, sess.Events)
}

func TestSessionWriter_DrainsTracer(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tr, err := ttp.New(ttp.Options{
		Contexts: 2,
		Capacity: 4,
		Clock:    clock.Monotonic,
		Reader:   testutil.NewDeterministicClock(1000),
	})
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Arm())
	tr.Emit(1, 20)
	tr.Emit(0, 10)
	tr.Emit(0, 11)
	tr.Disarm()

	w, err := s.BeginSession(ctx, testSession("drain", 1))
	require.NoError(t, err)
	_, err = tr.WriteTo(w)
	require.NoError(t, err)
	sess, err := w.Commit()
	require.NoError(t, err)
	assert.Equal(t, int64(3), sess.Events)

	got, err := s.ReadEvents(ctx, "drain", -1)
	require.NoError(t, err)
	assert.Equal(t, []ttp.Record{
		{ID: 10, Context: 0, Timestamp: 2000},
		{ID: 11, Context: 0, Timestamp: 3000},
		{ID: 20, Context: 1, Timestamp: 1000},
	}, got)
}

func TestSessionWriter_SplitWrites(t *testing.T) {
	s := createTestStore(t)
	w, err := s.BeginSession(context.Background(), testSession("split", 1))
	require.NoError(t, err)

	_, err = io.Copy(w, iotest.OneByteReader(strings.NewReader("1,0,10\n2,1,20\n")))
	require.NoError(t, err)
	sess, err := w.Commit()
	require.NoError(t, err)
	assert.Equal(t, int64(2), sess.Events)
}

func TestSessionWriter_RejectsMalformedLine(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	w, err := s.BeginSession(ctx, testSession("bad", 1))
	require.NoError(t, err)

	_, err = w.Write([]byte("not,a line\n"))
	require.Error(t, err)
	require.NoError(t, w.Rollback())

	_, err = s.GetSession(ctx, "bad")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionWriter_IncompleteTrailingLine(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	w, err := s.BeginSession(ctx, testSession("partial", 1))
	require.NoError(t, err)

	_, err = w.Write([]byte("1,0,10\n2,0"))
	require.NoError(t, err)
	_, err = w.Commit()
	require.Error(t, err)

	_, err = s.GetSession(ctx, "partial")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionWriter_FinishedTwice(t *testing.T) {
	s := createTestStore(t)
	w, err := s.BeginSession(context.Background(), testSession("twice", 1))
	require.NoError(t, err)

	_, err = w.Commit()
	require.NoError(t, err)
	_, err = w.Commit()
	assert.Error(t, err)
	assert.NoError(t, w.Rollback())
	_, err = w.Write([]byte("1,0,1\n"))
	assert.Error(t, err)
}

func TestListSessions_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, sess := range []Session{testSession("b", 2), testSession("c", 1), testSession("a", 2)} {
		_, err := s.SaveSession(ctx, sess, nil)
		require.NoError(t, err)
	}

	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, sess := range list {
		ids[i] = sess.ID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestDuplicateSessionID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveSession(ctx, testSession("dup", 1), nil)
	require.NoError(t, err)
	_, err = s.SaveSession(ctx, testSession("dup", 2), nil)
	assert.Error(t, err)
}

func TestDeleteSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveSession(ctx, testSession("gone", 1), []ttp.Record{{ID: 1}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, "gone"))
	_, err = s.ReadEvents(ctx, "gone", -1)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n))
	assert.Zero(t, n, "events cascade with their session")

	assert.ErrorIs(t, s.DeleteSession(ctx, "gone"), ErrSessionNotFound)
}
