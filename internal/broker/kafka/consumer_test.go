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
	closed    bool
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

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestConsumer_Consume_CallsHandlerAndCommits(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{{Key: []byte("k"), Value: []byte("v"), Offset: 7}},
		err:  errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	var gotK, gotV []byte
	err := c.Consume(context.Background(), func(k, v []byte) error {
		gotK, gotV = k, v
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch message")
	require.Equal(t, []byte("k"), gotK)
	require.Equal(t, []byte("v"), gotV)
	require.Len(t, fr.committed, 1)
	require.Equal(t, int64(7), fr.committed[0].Offset)
}

func TestConsumer_Consume_RetriesThenSucceeds(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Value: []byte("v")}}}
	c := newConsumerWithReader(fr).WithRetry(3, 0)

	calls := 0
	_ = c.Consume(context.Background(), func(k, v []byte) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.Equal(t, 3, calls)
	require.Len(t, fr.committed, 1)
}

func TestConsumer_Consume_HandlerErrorStopsWithoutCommit(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Key: []byte("k"), Value: []byte("v")}}}
	c := newConsumerWithReader(fr).WithRetry(2, time.Millisecond)

	want := errors.New("handler failed")
	err := c.Consume(context.Background(), func(k, v []byte) error { return want })
	require.ErrorIs(t, err, want)
	require.Empty(t, fr.committed)
}

func TestConsumer_Consume_PermanentErrorSkips(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Value: []byte("{bad")}, {Value: []byte("ok")}}}

	var skipped []string
	c := newConsumerWithReader(fr).OnSkip(func(msg kafka.Message, err error) {
		skipped = append(skipped, string(msg.Value))
	})

	var handled []string
	_ = c.Consume(context.Background(), func(k, v []byte) error {
		if string(v) == "{bad" {
			return Permanent(errors.New("decode"))
		}
		handled = append(handled, string(v))
		return nil
	})
	require.Equal(t, []string{"{bad"}, skipped)
	require.Equal(t, []string{"ok"}, handled)
	require.Len(t, fr.committed, 2)
}

func TestPermanent_Nil(t *testing.T) {
	require.NoError(t, Permanent(nil))
}

func TestIsPermanent(t *testing.T) {
	require.True(t, IsPermanent(Permanent(errors.New("bad payload"))))
	require.False(t, IsPermanent(errors.New("timeout")))
	require.False(t, IsPermanent(nil))
}

func TestConsumer_Close(t *testing.T) {
	fr := &fakeReader{}
	require.NoError(t, newConsumerWithReader(fr).Close())
	require.True(t, fr.closed)
}

func TestNewConsumer_Close(t *testing.T) {
	c := NewConsumer([]string{"localhost:0"}, "t", "g")
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}
