package fulfillment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sinkFunc func(ctx context.Context, sessionID, receiptID string, metadata map[string]any) error

func (f sinkFunc) Notify(ctx context.Context, sessionID, receiptID string, metadata map[string]any) error {
	return f(ctx, sessionID, receiptID, metadata)
}

func TestMulti_NotifiesAllAndJoinsErrors(t *testing.T) {
	var calls []string
	ok := sinkFunc(func(ctx context.Context, sid, rid string, _ map[string]any) error {
		calls = append(calls, "ok:"+sid)
		return nil
	})
	bad := sinkFunc(func(ctx context.Context, sid, rid string, _ map[string]any) error {
		calls = append(calls, "bad:"+sid)
		return errors.New("down")
	})

	err := Multi{bad, ok, NewLogSink(nil)}.Notify(context.Background(), "s1", "r1", nil)
	require.EqualError(t, err, "down")
	require.Equal(t, []string{"bad:s1", "ok:s1"}, calls)

	require.NoError(t, Multi{ok}.Notify(context.Background(), "s2", "r2", nil))
	require.NoError(t, Multi{}.Notify(context.Background(), "s3", "r3", nil))
}
