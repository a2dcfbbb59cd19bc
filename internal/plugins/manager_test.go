package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wintent/plugin-config/internal/database/testutil"
)

type recordingPlugin struct {
	BasePlugin
	name  string
	calls *[]string
	fail  map[string]error
}

func newRecordingPlugin(name string, calls *[]string) *recordingPlugin {
	return &recordingPlugin{name: name, calls: calls, fail: map[string]error{}}
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) record(hook string) error {
	*p.calls = append(*p.calls, p.name+"."+hook)
	return p.fail[hook]
}

func (p *recordingPlugin) AfterAdd(context.Context) error     { return p.record("afterAdd") }
func (p *recordingPlugin) BeforeLoad(context.Context) error   { return p.record("beforeLoad") }
func (p *recordingPlugin) Load(context.Context) error         { return p.record("load") }
func (p *recordingPlugin) Install(context.Context) error      { return p.record("install") }
func (p *recordingPlugin) AfterEnable(context.Context) error  { return p.record("afterEnable") }
func (p *recordingPlugin) AfterDisable(context.Context) error { return p.record("afterDisable") }
func (p *recordingPlugin) Remove(context.Context) error       { return p.record("remove") }

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	manager, err := NewManager(db, NewEventBus())
	require.NoError(t, err)
	return manager
}

func TestManagerAddRejectsInvalidPlugins(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	var calls []string

	require.ErrorIs(t, manager.Add(ctx, nil), ErrNilPlugin)
	require.ErrorIs(t, manager.Add(ctx, newRecordingPlugin("  ", &calls)), ErrEmptyPluginName)

	require.NoError(t, manager.Add(ctx, newRecordingPlugin("alpha", &calls)))
	require.ErrorIs(t, manager.Add(ctx, newRecordingPlugin("alpha", &calls)), ErrDuplicatePlugin)

	require.Equal(t, []string{"alpha.afterAdd"}, calls)
	require.Equal(t, []string{"alpha"}, manager.Names())

	state, err := manager.State(ctx, "alpha")
	require.NoError(t, err)
	require.False(t, state.Installed)
	require.False(t, state.Enabled)
}

func TestManagerLoadRunsBeforeLoadForAllFirst(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	var calls []string

	alpha := newRecordingPlugin("alpha", &calls)
	beta := newRecordingPlugin("beta", &calls)
	alpha.fail["beforeLoad"] = errors.New("bad")
	require.NoError(t, manager.Add(ctx, alpha))
	require.NoError(t, manager.Add(ctx, beta))
	calls = nil

	err := manager.Load(ctx)
	require.Error(t, err)
	require.ErrorContains(t, err, "alpha beforeLoad")
	require.Equal(t, []string{"alpha.beforeLoad", "beta.beforeLoad", "alpha.load", "beta.load"}, calls)
}

func TestManagerInstallEmitsOnce(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	var calls []string
	var events []Event

	manager.Bus().On(EventAfterInstallPlugin, func(_ context.Context, event Event) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, manager.Add(ctx, newRecordingPlugin("system-settings", &calls)))

	require.NoError(t, manager.Install(ctx, "system-settings"))
	require.NoError(t, manager.Install(ctx, "system-settings"))

	require.Len(t, events, 1)
	require.Equal(t, EventAfterInstallPlugin, events[0].Name)
	require.Equal(t, "system-settings", events[0].Plugin.Name)
	require.Equal(t, []string{"system-settings.afterAdd", "system-settings.install"}, calls)

	state, err := manager.State(ctx, "system-settings")
	require.NoError(t, err)
	require.True(t, state.Installed)
}

func TestManagerInstallFailureKeepsPluginUninstalled(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	var calls []string

	plugin := newRecordingPlugin("alpha", &calls)
	plugin.fail["install"] = errors.New("disk full")
	require.NoError(t, manager.Add(ctx, plugin))

	err := manager.Install(ctx, "alpha")
	require.ErrorContains(t, err, "disk full")

	state, err := manager.State(ctx, "alpha")
	require.NoError(t, err)
	require.False(t, state.Installed)
}

func TestManagerEnableInstallsAndRunsAfterEnable(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	var calls []string
	enabled := 0

	manager.Bus().On(EventAfterEnablePlugin, func(context.Context, Event) error {
		enabled++
		return nil
	})
	require.NoError(t, manager.Add(ctx, newRecordingPlugin("alpha", &calls)))
	calls = nil

	require.NoError(t, manager.Enable(ctx, "alpha"))
	require.NoError(t, manager.Enable(ctx, "alpha"))

	require.Equal(t, []string{"alpha.install", "alpha.afterEnable", "alpha.afterEnable"}, calls)
	require.Equal(t, 2, enabled)

	state, err := manager.State(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, state.Installed)
	require.True(t, state.Enabled)
}

func TestManagerDisableAndRemove(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	var calls []string

	require.NoError(t, manager.Add(ctx, newRecordingPlugin("alpha", &calls)))
	require.NoError(t, manager.Enable(ctx, "alpha"))
	require.NoError(t, manager.Disable(ctx, "alpha"))

	state, err := manager.State(ctx, "alpha")
	require.NoError(t, err)
	require.False(t, state.Enabled)

	require.NoError(t, manager.Remove(ctx, "alpha"))
	_, ok := manager.Get("alpha")
	require.False(t, ok)
	require.Empty(t, manager.Names())

	_, err = manager.State(ctx, "alpha")
	require.ErrorIs(t, err, ErrPluginNotFound)
	require.Contains(t, calls, "alpha.afterDisable")
	require.Contains(t, calls, "alpha.remove")
}

func TestManagerUnknownPlugin(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	require.ErrorIs(t, manager.Install(ctx, "ghost"), ErrPluginNotFound)
	require.ErrorIs(t, manager.Enable(ctx, "ghost"), ErrPluginNotFound)
	require.ErrorIs(t, manager.Disable(ctx, "ghost"), ErrPluginNotFound)
	require.ErrorIs(t, manager.Remove(ctx, "ghost"), ErrPluginNotFound)
}
