package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	err       error
	i         int
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	return kafka.Message{}, errors.New("eof")
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_Consume_CallsHandlerAndCommits(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{{Key: []byte("k"), Value: []byte("v")}},
		err:  errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	var gotK, gotV []byte
	err := c.Consume(context.Background(), func(k, v []byte) error {
		gotK, gotV = k, v
		return nil
	})
	require.Error(t, err)
	require.Equal(t, []byte("k"), gotK)
	require.Equal(t, []byte("v"), gotV)
	require.Len(t, fr.committed, 1)
}

func TestConsumer_Consume_TransientErrorRetriesSameMessage(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{{Value: []byte("a")}, {Value: []byte("b")}},
		err:  errors.New("stop"),
	}
	c := newConsumerWithReader(fr).WithRetry(time.Millisecond, 5*time.Millisecond)

	var seen []string
	fails := 2
	err := c.Consume(context.Background(), func(k, v []byte) error {
		seen = append(seen, string(v))
		if string(v) == "a" && fails > 0 {
			fails--
			return errors.New("store unavailable")
		}
		return nil
	})
	require.EqualError(t, err, "fetch message: stop")
	require.Equal(t, []string{"a", "a", "a", "b"}, seen)
	require.Len(t, fr.committed, 2)
	require.Equal(t, []byte("a"), fr.committed[0].Value)
}

func TestConsumer_Consume_CanceledWhileRetryingLeavesUncommitted(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Key: []byte("k"), Value: []byte("v")}}}
	c := newConsumerWithReader(fr).WithRetry(time.Millisecond, 2*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := c.Consume(ctx, func(k, v []byte) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return errors.New("store unavailable")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, calls, 3)
	require.Empty(t, fr.committed)
}

func TestConsumer_Consume_PermanentErrorIsCommitted(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{{Value: []byte("bad")}, {Value: []byte("good")}},
		err:  errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	var seen []string
	err := c.Consume(context.Background(), func(k, v []byte) error {
		seen = append(seen, string(v))
		if string(v) == "bad" {
			return Permanent(errors.New("invalid payload"))
		}
		return nil
	})
	require.EqualError(t, err, "fetch message: stop")
	require.Equal(t, []string{"bad", "good"}, seen)
	require.Len(t, fr.committed, 2)
}

func TestPermanent(t *testing.T) {
	require.Nil(t, Permanent(nil))
	base := errors.New("x")
	err := Permanent(base)
	require.True(t, IsPermanent(err))
	require.ErrorIs(t, err, base)
	require.False(t, IsPermanent(base))
}

func TestNewConsumer_Close(t *testing.T) {
	c := NewConsumer([]string{"localhost:0"}, "t", "g")
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}
