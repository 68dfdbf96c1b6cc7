package rsync

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/slaweally/SSB-Manager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct {
	executeFunc func(ctx context.Context, name string, args ...string) ([]byte, error)
	name        string
	args        []string
}

func (m *mockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	if m.executeFunc != nil {
		return m.executeFunc(ctx, name, args...)
	}
	return nil, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestSync_FullPolicyMirrors(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "home_files")
	executor := &mockExecutor{}

	svc := NewWithExecutor(testLogger(), executor)
	result, err := svc.Sync(context.Background(), "/home", dst, models.SyncFull)

	require.NoError(t, err)
	assert.Nil(t, result.Error)
	assert.Equal(t, "rsync", executor.name)
	assert.Contains(t, executor.args, "-a")
	assert.Contains(t, executor.args, "--delete")
	assert.NotContains(t, executor.args, "--ignore-existing")
	assert.NotContains(t, executor.args, "--update")
}

func TestSync_AdditivePolicyNeverOverwrites(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "home_files")
	executor := &mockExecutor{}

	svc := NewWithExecutor(testLogger(), executor)
	result, err := svc.Sync(context.Background(), "/home", dst, models.SyncAdditiveOnly)

	require.NoError(t, err)
	assert.Nil(t, result.Error)
	assert.Contains(t, executor.args, "--ignore-existing")
	assert.NotContains(t, executor.args, "--delete")
}

func TestSync_ChangedPolicyNeverDeletes(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "home_files")
	executor := &mockExecutor{}

	svc := NewWithExecutor(testLogger(), executor)
	result, err := svc.Sync(context.Background(), "/home", dst, models.SyncChangedOnly)

	require.NoError(t, err)
	assert.Nil(t, result.Error)
	assert.Contains(t, executor.args, "--update")
	assert.NotContains(t, executor.args, "--delete")
}

func TestSync_SourceGetsTrailingSlash(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "home_files")
	executor := &mockExecutor{}

	svc := NewWithExecutor(testLogger(), executor)
	_, err := svc.Sync(context.Background(), "/home", dst, models.SyncFull)

	require.NoError(t, err)
	require.GreaterOrEqual(t, len(executor.args), 2)
	assert.Equal(t, "/home/", executor.args[len(executor.args)-2])
	assert.Equal(t, dst, executor.args[len(executor.args)-1])

	// Already-slashed sources are left alone.
	_, err = svc.Sync(context.Background(), "/home/", dst, models.SyncFull)
	require.NoError(t, err)
	assert.Equal(t, "/home/", executor.args[len(executor.args)-2])
}

func TestSync_NonZeroExitIsFailure(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "home_files")
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("rsync: connection unexpectedly closed"), errors.New("exit status 12")
		},
	}

	svc := NewWithExecutor(testLogger(), executor)
	result, err := svc.Sync(context.Background(), "/home", dst, models.SyncFull)

	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "exit status 12")
	assert.Contains(t, result.Error.Error(), "connection unexpectedly closed")
}

func TestSync_CreatesDestination(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "nested", "home_files")
	executor := &mockExecutor{}

	svc := NewWithExecutor(testLogger(), executor)
	result, err := svc.Sync(context.Background(), "/home", dst, models.SyncFull)

	require.NoError(t, err)
	assert.Nil(t, result.Error)
	assert.DirExists(t, dst)
}
