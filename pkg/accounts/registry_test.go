package accounts

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	got, ok := CodeOf(err)
	require.True(t, ok, "expected *AccountError, got %T: %v", err, err)
	assert.Equal(t, code, got)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	require.NoError(t, r.Register(ctx, "alice", "secret"))
	requireCode(t, r.Register(ctx, "alice", "other"), ErrClientAlreadyExists)
	requireCode(t, r.Register(ctx, "", "x"), ErrInvalidName)

	// the first password still works after the rejected duplicate
	require.NoError(t, r.Login(ctx, "alice", "secret"))
	assert.Equal(t, 1, r.Len())
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Register(ctx, "alice", "secret"))

	tests := []struct {
		name     string
		user     string
		password string
		code     ErrorCode
	}{
		{"unknown client", "bob", "secret", ErrClientDoesntExist},
		{"wrong password", "alice", "wrong", ErrWrongCredentials},
		{"empty password", "alice", "", ErrWrongCredentials},
		{"empty name", "", "secret", ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireCode(t, r.Login(ctx, tt.user, tt.password), tt.code)
		})
	}

	assert.False(t, r.IsOnline("alice"))
	require.NoError(t, r.Login(ctx, "alice", "secret"))
	require.NoError(t, r.Login(ctx, "alice", "secret"), "repeated login is accepted")
	assert.True(t, r.IsOnline("alice"))
	assert.Equal(t, []string{"alice"}, r.Online())
}

func TestCancelledContext(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.Register(ctx, "alice", "x"), context.Canceled)
	assert.ErrorIs(t, r.Login(ctx, "alice", "x"), context.Canceled)
	assert.Equal(t, 0, r.Len())
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Register(ctx, "bob", "b"))
	require.NoError(t, r.Register(ctx, "alice", "a"))
	require.NoError(t, r.Login(ctx, "bob", "b"))

	snap := r.Snapshot()
	assert.Equal(t, []Account{{Name: "alice", Password: "a"}, {Name: "bob", Password: "b"}}, snap)

	restored := NewRegistry()
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, 2, restored.Len())
	assert.False(t, restored.IsOnline("bob"), "online set is never restored")
	require.NoError(t, restored.Login(ctx, "alice", "a"))

	assert.Error(t, restored.Restore([]Account{{Name: "x"}, {Name: "x"}}))
	assert.Error(t, restored.Restore([]Account{{Name: ""}}))
	assert.Equal(t, 2, restored.Len())
}

func TestConcurrentRegisterSameName(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.Register(ctx, "shared", fmt.Sprintf("pw%d", i)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, r.Len())
}
