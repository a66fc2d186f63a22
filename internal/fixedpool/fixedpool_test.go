// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package fixedpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_Go(t *testing.T) {
	t.Run("will run every task", func(t *testing.T) {
		p := New(3)

		var counter atomic.Int32
		done := make(chan struct{}, 10)
		for i := 0; i < 10; i++ {
			err := p.Go(context.Background(), func(ctx context.Context) error {
				counter.Add(1)
				done <- struct{}{}
				return nil
			})
			require.Nil(t, err)
		}
		for i := 0; i < 10; i++ {
			<-done
		}

		require.Nil(t, p.Close())
		require.Equal(t, int32(10), counter.Load())
	})

	t.Run("will pass the context to the task", func(t *testing.T) {
		type key struct{}
		p := New(1)
		defer p.Close()

		got := make(chan any, 1)
		ctx := context.WithValue(context.Background(), key{}, "value")
		err := p.Go(ctx, func(ctx context.Context) error {
			got <- ctx.Value(key{})
			return nil
		})
		require.Nil(t, err)
		require.Equal(t, "value", <-got)
	})

	t.Run("will block", func(t *testing.T) {
		t.Run("if every worker is busy", func(t *testing.T) {
			p := New(1)
			defer p.Close()

			release := make(chan struct{})
			err := p.Go(context.Background(), func(ctx context.Context) error {
				<-release
				return nil
			})
			require.Nil(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			err = p.Go(ctx, func(ctx context.Context) error {
				return nil
			})
			require.ErrorIs(t, err, context.DeadlineExceeded)

			close(release)
		})
	})

	t.Run("will keep working", func(t *testing.T) {
		t.Run("if a task panics or fails", func(t *testing.T) {
			p := New(1)
			defer p.Close()

			err := p.Go(context.Background(), func(ctx context.Context) error {
				panic("boom")
			})
			require.Nil(t, err)

			err = p.Go(context.Background(), func(ctx context.Context) error {
				return errors.New("failed")
			})
			require.Nil(t, err)

			ran := make(chan struct{})
			err = p.Go(context.Background(), func(ctx context.Context) error {
				close(ran)
				return nil
			})
			require.Nil(t, err)
			<-ran
		})
	})

	t.Run("will return ErrClosed", func(t *testing.T) {
		t.Run("if the pool is closed", func(t *testing.T) {
			p := New(2)
			require.Nil(t, p.Close())
			require.Nil(t, p.Close())

			err := p.Go(context.Background(), func(ctx context.Context) error {
				return nil
			})
			require.ErrorIs(t, err, ErrClosed)
		})
	})
}

func TestPool_Close(t *testing.T) {
	t.Run("will wait for running tasks", func(t *testing.T) {
		p := New(2)

		var finished atomic.Bool
		started := make(chan struct{})
		err := p.Go(context.Background(), func(ctx context.Context) error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
			return nil
		})
		require.Nil(t, err)
		<-started

		require.Nil(t, p.Close())
		require.True(t, finished.Load())
	})
}
