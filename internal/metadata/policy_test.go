package metadata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyKeepsShipsAssembled(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.KeepsAssembled(25, CategoryShip))
	assert.False(t, p.KeepsAssembled(448, 2))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]byte("assembled_categories: [6, 65]\nassembled_groups: [448]\n"))
	require.NoError(t, err)

	assert.True(t, p.KeepsAssembled(1, 65))
	assert.True(t, p.KeepsAssembled(448, 2))
	assert.False(t, p.KeepsAssembled(18, 4))
}

func TestParsePolicyRejectsInvalidIDs(t *testing.T) {
	_, err := ParsePolicy([]byte("assembled_groups: [0]\n"))
	assert.Error(t, err)

	_, err = ParsePolicy([]byte("assembled_categories: {oops"))
	assert.Error(t, err)
}

func TestLoadPolicyWithoutPath(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.True(t, p.KeepsAssembled(0, CategoryShip))
}

func TestWatchPolicyReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assembled_categories: [6]\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan Policy, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchPolicy(ctx, path, testLogger(), func(p Policy) {
			select {
			case applied <- p:
			default:
			}
		})
	}()

	// Give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("assembled_groups: [448]\n"), 0o644))

	// A rewrite can surface as several events, the first possibly on a truncated file
	deadline := time.After(5 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case p := <-applied:
			reloaded = p.KeepsAssembled(448, 2)
		case <-deadline:
			t.Fatal("policy was not reloaded")
		}
	}

	cancel()
	assert.NoError(t, <-done)
}
