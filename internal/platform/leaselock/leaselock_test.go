package leaselock

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/flowmium-io/flowmium/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func TestAcquireGrantsAnUnheldLease(t *testing.T) {
	srv := miniredis.RunT(t)

	lock, err := New("redis://"+srv.Addr(), "scheduler-lease", "owner-a", time.Minute, testLogger(t))
	require.NoError(t, err)
	defer lock.Close()

	require.True(t, lock.Acquire(t.Context()))
}

func TestAcquireRenewsItsOwnLease(t *testing.T) {
	srv := miniredis.RunT(t)

	lock, err := New("redis://"+srv.Addr(), "scheduler-lease", "owner-a", time.Minute, testLogger(t))
	require.NoError(t, err)
	defer lock.Close()

	require.True(t, lock.Acquire(t.Context()))
	require.True(t, lock.Acquire(t.Context()))
}

func TestAcquireRefusesAnotherOwnersLease(t *testing.T) {
	srv := miniredis.RunT(t)

	owner, err := New("redis://"+srv.Addr(), "scheduler-lease", "owner-a", time.Minute, testLogger(t))
	require.NoError(t, err)
	defer owner.Close()
	require.True(t, owner.Acquire(t.Context()))

	challenger, err := New("redis://"+srv.Addr(), "scheduler-lease", "owner-b", time.Minute, testLogger(t))
	require.NoError(t, err)
	defer challenger.Close()
	require.False(t, challenger.Acquire(t.Context()))
}

func TestReleaseFreesTheLeaseForAnotherOwner(t *testing.T) {
	srv := miniredis.RunT(t)

	owner, err := New("redis://"+srv.Addr(), "scheduler-lease", "owner-a", time.Minute, testLogger(t))
	require.NoError(t, err)
	defer owner.Close()
	require.True(t, owner.Acquire(t.Context()))
	owner.Release(t.Context())

	challenger, err := New("redis://"+srv.Addr(), "scheduler-lease", "owner-b", time.Minute, testLogger(t))
	require.NoError(t, err)
	defer challenger.Close()
	require.True(t, challenger.Acquire(t.Context()))
}

func TestNilLockAlwaysAcquiresAndNoopsOnReleaseAndClose(t *testing.T) {
	var lock *Lock
	require.True(t, lock.Acquire(t.Context()))
	lock.Release(t.Context())
	require.NoError(t, lock.Close())
}

func TestAcquireFailsOpenWhenRedisIsUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	lock, err := New("redis://"+srv.Addr(), "scheduler-lease", "owner-a", time.Minute, testLogger(t))
	require.NoError(t, err)
	defer lock.Close()

	srv.Close()

	require.True(t, lock.Acquire(t.Context()))
}
