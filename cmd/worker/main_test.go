package main

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

// scriptedReader returns its messages in order, then cancels and blocks on ctx.
type scriptedReader struct {
	msgs   []kafka.Message
	errs   []error
	cancel context.CancelFunc
	i      int
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if r.i >= len(r.msgs) {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg, err := r.msgs[r.i], r.errs[r.i]
	r.i++
	return msg, err
}

func TestForward(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &scriptedReader{
		msgs:   []kafka.Message{{Value: []byte("a")}, {}, {Value: []byte("b")}, {Value: []byte("c")}},
		errs:   []error{nil, errors.New("broker gone"), nil, nil},
		cancel: cancel,
	}
	var pushed []string
	forward(ctx, r, func(ctx context.Context, raw []byte) error {
		pushed = append(pushed, string(raw))
		if string(raw) == "b" {
			return errors.New("loki unavailable")
		}
		return nil
	})

	want := []string{"a", "b", "c"}
	if len(pushed) != len(want) {
		t.Fatalf("pushed = %v, want %v", pushed, want)
	}
	for i := range want {
		if pushed[i] != want[i] {
			t.Errorf("pushed[%d] = %q, want %q", i, pushed[i], want[i])
		}
	}
}
