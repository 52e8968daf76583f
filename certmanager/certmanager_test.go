package certmanager

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"fsca/config"
)

func setConfig(t *testing.T, values map[string]any) {
	for key, value := range values {
		prev := viper.Get(key)
		viper.Set(key, value)
		t.Cleanup(func() { viper.Set(key, prev) })
	}
}

func TestNewFromConfig(t *testing.T) {
	dir := t.TempDir()
	setConfig(t, map[string]any{
		config.KeyDir:          dir,
		config.KeyKeySize:      1024,
		config.KeyKDFIteration: 1000,
		config.KeyCAPassword:   "secret",
		config.KeyIndexDSN:     "sqlite://" + filepath.Join(dir, "index.db"),
	})

	prompter := PrompterFunc(func(ctx context.Context, label string) ([]byte, error) {
		require.Fail(t, "configured password should unlock root key", label)
		return nil, nil
	})

	ctx := context.Background()
	mgr, store, err := NewFromConfig(prompter)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, mgr.Init(ctx))

	root, err := mgr.Issue(ctx, TypeRoot, "", []byte("secret"))
	require.NoError(t, err)
	require.Equal(t, "ca", root.Name)
	require.Equal(t, config.RootCN(), root.CN)
	require.Equal(t, int64(1), root.Serial)

	client, err := mgr.Issue(ctx, TypeClient, "alice", nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), client.Serial)
	require.FileExists(t, filepath.Join(dir, "alice.crt"))

	_, err = mgr.Verify(ctx, "alice")
	require.NoError(t, err)

	_, err = mgr.Revoke(ctx, "alice")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, config.CRLFile()))
	require.NoFileExists(t, filepath.Join(dir, "alice.crt"))

	records, err := mgr.History(ctx, ListOpt{Status: StatusRevoked})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "alice", records[0].Name)
}

func TestSQLIndexDisabled(t *testing.T) {
	idx, err := SQLIndex("")
	require.NoError(t, err)

	_, err = idx.List(context.Background(), ListOpt{})
	require.ErrorIs(t, err, ErrIndexDisabled)
}
