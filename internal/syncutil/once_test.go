package syncutil

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseOnce_RunsOnce(t *testing.T) {
	t.Parallel()

	var c CloseOnce
	calls := 0
	errRelease := errors.New("release failed")

	assert.False(t, c.Done())
	err := c.Do(func() error {
		calls++
		return errRelease
	})
	assert.ErrorIs(t, err, errRelease)
	assert.True(t, c.Done())

	err = c.Do(func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, errRelease, "later calls report the first result")
	assert.Equal(t, 1, calls)
}

func TestCloseOnce_Concurrent(t *testing.T) {
	t.Parallel()

	var (
		c     CloseOnce
		mu    Mutex
		calls int
		wg    sync.WaitGroup
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Do(func() error {
				mu.Lock()
				calls++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
}
