package rules

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/forwardbot/pkg/config"
	"github.com/tinyland-inc/forwardbot/pkg/rules"
)

func TestNewRulesCommand(t *testing.T) {
	cmd := NewRulesCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "rules", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.True(t, cmd.HasSubCommands())
	assert.Nil(t, cmd.RunE)

	add, _, err := cmd.Find([]string{"add"})
	require.NoError(t, err)
	assert.Equal(t, "add SOURCE DESTINATION KEYWORD...", add.Use)
	assert.Error(t, add.Args(add, []string{"-100", "-200"}))
	assert.NoError(t, add.Args(add, []string{"-100", "-200", "kw"}))

	test, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)
	assert.Equal(t, "test SOURCE TEXT...", test.Use)
	assert.Error(t, test.Args(test, []string{"-100"}))

	list, _, err := cmd.Find([]string{"ls"})
	require.NoError(t, err)
	assert.Equal(t, "list", list.Use)
}

func TestAddAndListRules(t *testing.T) {
	for _, driver := range []string{config.StorageJSON, config.StorageSQLite} {
		t.Run(driver, func(t *testing.T) {
			sc := config.StorageConfig{Driver: driver, Path: filepath.Join(t.TempDir(), "rules."+driver)}
			ctx := context.Background()

			var out bytes.Buffer
			require.NoError(t, listRules(ctx, sc, &out))
			assert.Equal(t, "No forwarding rules.\n", out.String())

			out.Reset()
			require.NoError(t, addRule(ctx, sc, []string{"-100", "-200", "'breaking", "news'"}, &out))
			assert.Equal(t, "✓ -100 → -200: 'breaking news'\n", out.String())
			require.NoError(t, addRule(ctx, sc, []string{"-100", "@alerts_feed", "deploy"}, &out))

			out.Reset()
			require.NoError(t, listRules(ctx, sc, &out))
			assert.Equal(t, "-100\n  → -200: 'breaking news'\n  → @alerts_feed: 'deploy'\n", out.String())
		})
	}
}

func TestAddRuleRejectsInvalidInput(t *testing.T) {
	sc := config.StorageConfig{Driver: config.StorageJSON, Path: filepath.Join(t.TempDir(), "forwards.json")}

	err := addRule(context.Background(), sc, []string{"not a chat", "-200", "kw"}, &bytes.Buffer{})
	assert.Error(t, err)

	err = addRule(context.Background(), sc, []string{"-100", "-200", "''"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, rules.ErrEmptyKeyword)

	_, statErr := os.Stat(sc.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAddRuleRefusesCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forwards.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	sc := config.StorageConfig{Driver: config.StorageJSON, Path: path}

	err := addRule(context.Background(), sc, []string{"-100", "-200", "kw"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, rules.ErrStorageCorrupt)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "{broken", string(data))
}

func TestTestRules(t *testing.T) {
	sc := config.StorageConfig{Driver: config.StorageJSON, Path: filepath.Join(t.TempDir(), "forwards.json")}
	fc := config.DefaultConfig().Forward
	ctx := context.Background()

	require.NoError(t, addRule(ctx, sc, []string{"-100", "-200", "urgent"}, &bytes.Buffer{}))
	require.NoError(t, addRule(ctx, sc, []string{"-100", "@alerts_feed", "disk"}, &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, testRules(ctx, sc, fc, []string{"-100", "URGENT:", "disk", "full"}, &out))
	assert.Equal(t, "forward from -100 to -200\nforward from -100 to @alerts_feed\n", out.String())

	out.Reset()
	require.NoError(t, testRules(ctx, sc, fc, []string{"-0100", "hello"}, &out))
	assert.Equal(t, "No rules matched.\n", out.String())

	fc.TextMode = config.TextModeCopy
	out.Reset()
	require.NoError(t, testRules(ctx, sc, fc, []string{"-100", "urgent"}, &out))
	assert.Equal(t, "send text to -200: \"📨 From unknown chat:\\nurgent\"\n", out.String())

	assert.Error(t, testRules(ctx, sc, fc, []string{"@mychannel", "urgent"}, &bytes.Buffer{}))
}
