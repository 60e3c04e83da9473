package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/PayTrack/internal/models"
	"github.com/stretchr/testify/require"
)

func session(now time.Time) *models.Session {
	return &models.Session{
		ID:          models.NewID(),
		AmountMinor: 5000,
		Receivers:   []string{"R1"},
		Status:      models.SessionStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		UpdatedAt:   now,
	}
}

func TestStore_ReceiptIdempotent(t *testing.T) {
	st := New()
	ctx := context.Background()
	now := time.Now().UTC()

	first, isNew, err := st.CreateOrGetReceipt(ctx, &models.Receipt{ID: "r1", Reference: " cju0pzq3u6 ", AmountMinor: 5000, ReceiverID: "R1", EventTime: now})
	require.NoError(t, err)
	require.True(t, isNew)
	require.Equal(t, "CJU0PZQ3U6", first.Reference)

	second, isNew, err := st.CreateOrGetReceipt(ctx, &models.Receipt{ID: "r2", Reference: "Cju0Pzq3U6", AmountMinor: 5000, ReceiverID: "R1", EventTime: now})
	require.NoError(t, err)
	require.False(t, isNew)
	require.Equal(t, first, second)

	_, err = st.GetReceipt(ctx, "r2")
	require.ErrorIs(t, err, models.ErrReceiptNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	st := New()
	ctx := context.Background()
	s := session(time.Now())
	require.NoError(t, st.CreateSession(ctx, s))

	s.Receivers[0] = "MUTATED"
	got, err := st.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"R1"}, got.Receivers)

	got.Status = models.SessionStatusVerified
	again, err := st.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusPending, again.Status)
}

func TestStore_Transitions(t *testing.T) {
	st := New()
	ctx := context.Background()
	now := time.Now().UTC()

	s := session(now)
	require.NoError(t, st.CreateSession(ctx, s))
	_, err := st.DeclareReference(ctx, s.ID, "x1", now)
	require.NoError(t, err)

	rc, _, err := st.CreateOrGetReceipt(ctx, &models.Receipt{ID: "r1", Reference: "X1", AmountMinor: 5000, ReceiverID: "R1", EventTime: now})
	require.NoError(t, err)

	require.NoError(t, st.MarkSessionVerified(ctx, s.ID, rc.ID, "verified"))
	require.ErrorIs(t, st.MarkSessionFailed(ctx, s.ID, "late"), models.ErrStatusConflict)

	// a verified session is not its own competitor
	require.ErrorIs(t, st.MarkSessionVerified(ctx, s.ID, rc.ID, "verified"), models.ErrStatusConflict)

	_, err = st.DeclareReference(ctx, s.ID, "x2", now)
	require.ErrorIs(t, err, models.ErrSessionClosed)
	_, err = st.DeclareReference(ctx, "nope", "x2", now)
	require.ErrorIs(t, err, models.ErrSessionNotFound)

	late := session(now)
	require.NoError(t, st.CreateSession(ctx, late))
	_, err = st.DeclareReference(ctx, late.ID, "x3", late.ExpiresAt)
	require.ErrorIs(t, err, models.ErrSessionClosed)
}

func TestStore_ExpireAndPage(t *testing.T) {
	st := New()
	ctx := context.Background()
	now := time.Now().UTC()

	old := session(now.Add(-2 * time.Hour))
	require.NoError(t, st.CreateSession(ctx, old))

	var declared []string
	for i := 0; i < 5; i++ {
		s := session(now)
		require.NoError(t, st.CreateSession(ctx, s))
		_, err := st.DeclareReference(ctx, s.ID, "P"+s.ID, now)
		require.NoError(t, err)
		declared = append(declared, s.ID)
	}

	n, err := st.ExpireSessions(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	page1, err := st.ListDeclaredSessionIDs(ctx, "", 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	page2, err := st.ListDeclaredSessionIDs(ctx, page1[2], 3)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.ElementsMatch(t, declared, append(page1, page2...))
}

func TestStore_ConcurrentVerifyHasOneWinner(t *testing.T) {
	st := New()
	ctx := context.Background()
	now := time.Now().UTC()

	_, _, err := st.CreateOrGetReceipt(ctx, &models.Receipt{ID: "r1", Reference: "RACE", AmountMinor: 5000, ReceiverID: "R1", EventTime: now})
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 16; i++ {
		s := session(now)
		require.NoError(t, st.CreateSession(ctx, s))
		_, err := st.DeclareReference(ctx, s.ID, "race", now)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if st.MarkSessionVerified(ctx, id, "r1", "verified") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestStore_VerifyRequiresCurrentReference(t *testing.T) {
	st := New()
	ctx := context.Background()
	now := time.Now().UTC()

	s := session(now)
	require.NoError(t, st.CreateSession(ctx, s))
	_, err := st.DeclareReference(ctx, s.ID, "OLDREF1", now)
	require.NoError(t, err)
	rc, _, err := st.CreateOrGetReceipt(ctx, &models.Receipt{ID: "r1", Reference: "OLDREF1", AmountMinor: 5000, ReceiverID: "R1", EventTime: now})
	require.NoError(t, err)

	candidates, err := st.ListAwaitingSessionsByReference(ctx, "OLDREF1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	// the customer corrects the reference before the match commits
	_, err = st.DeclareReference(ctx, s.ID, "NEWREF1", now)
	require.NoError(t, err)

	require.ErrorIs(t, st.MarkSessionVerified(ctx, candidates[0].ID, rc.ID, "verified"), models.ErrStatusConflict)

	got, err := st.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusDeclared, got.Status)
	require.Equal(t, "NEWREF1", got.Reference())
	require.Nil(t, got.ResolvedReceiptID)
}
