package plugins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wintent/plugin-config/internal/database"
	"github.com/wintent/plugin-config/internal/models"
	"github.com/wintent/plugin-config/pkg/logger"
	"github.com/wintent/plugin-config/pkg/metrics"
)

var (
	// ErrNilPlugin signals an attempt to add a nil plugin.
	ErrNilPlugin = errors.New("plugins: nil plugin")
	// ErrEmptyPluginName indicates a plugin without a name.
	ErrEmptyPluginName = errors.New("plugins: plugin name is required")
	// ErrDuplicatePlugin indicates a name registered twice.
	ErrDuplicatePlugin = errors.New("plugins: plugin already added")
	// ErrPluginNotFound indicates a lookup for an unknown plugin.
	ErrPluginNotFound = errors.New("plugins: plugin not found")
)

// Manager owns plugin registration, lifecycle ordering and persisted state.
type Manager struct {
	db  *gorm.DB
	bus *EventBus
	log *zap.Logger

	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
}

// NewManager constructs a manager persisting state through db and emitting events on bus.
func NewManager(db *gorm.DB, bus *EventBus) (*Manager, error) {
	if db == nil {
		return nil, errors.New("plugins: db is required")
	}
	if bus == nil {
		bus = NewEventBus()
	}
	return &Manager{
		db:      db,
		bus:     bus,
		log:     logger.WithModule("plugins"),
		plugins: make(map[string]Plugin),
	}, nil
}

// Bus returns the event bus plugins subscribe to.
func (m *Manager) Bus() *EventBus {
	return m.bus
}

// Add registers plugin, records its state row and runs AfterAdd.
func (m *Manager) Add(ctx context.Context, plugin Plugin) error {
	if plugin == nil {
		return ErrNilPlugin
	}
	name := strings.TrimSpace(plugin.Name())
	if name == "" {
		return ErrEmptyPluginName
	}

	m.mu.Lock()
	if _, exists := m.plugins[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)
	}
	m.plugins[name] = plugin
	m.order = append(m.order, name)
	m.mu.Unlock()

	if _, err := m.ensureState(ctx, name); err != nil {
		return err
	}
	return m.runHook(plugin, "afterAdd", plugin.AfterAdd, ctx)
}

// Get returns the plugin registered under name.
func (m *Manager) Get(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plugin, ok := m.plugins[strings.TrimSpace(name)]
	return plugin, ok
}

// Names lists plugins in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Load runs BeforeLoad on every plugin, then Load on every plugin. Failures are
// collected so one plugin cannot block the others.
func (m *Manager) Load(ctx context.Context) error {
	plugins := m.ordered()

	var errs error
	for _, plugin := range plugins {
		errs = multierr.Append(errs, m.runHook(plugin, "beforeLoad", plugin.BeforeLoad, ctx))
	}
	for _, plugin := range plugins {
		errs = multierr.Append(errs, m.runHook(plugin, "load", plugin.Load, ctx))
	}
	return errs
}

// Install runs the plugin's Install hook once, persists the installed flag and emits
// afterInstallPlugin. Installing an installed plugin is a no-op.
func (m *Manager) Install(ctx context.Context, name string) error {
	plugin, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}

	state, err := m.ensureState(ctx, plugin.Name())
	if err != nil {
		return err
	}
	if state.Installed {
		return nil
	}

	if err := m.runHook(plugin, "install", plugin.Install, ctx); err != nil {
		return err
	}
	if err := m.setState(ctx, plugin.Name(), map[string]any{"installed": true}); err != nil {
		return err
	}

	if err := m.bus.Emit(ctx, EventAfterInstallPlugin, Descriptor{Name: plugin.Name()}); err != nil {
		m.log.Warn("after install listeners reported errors", zap.String("plugin", plugin.Name()), zap.Error(err))
	}
	return nil
}

// Enable installs the plugin when needed, marks it enabled and runs AfterEnable.
// AfterEnable runs on every call so plugins can re-check their state at startup.
func (m *Manager) Enable(ctx context.Context, name string) error {
	if err := m.Install(ctx, name); err != nil {
		return err
	}
	plugin, _ := m.Get(name)

	if err := m.setState(ctx, plugin.Name(), map[string]any{"enabled": true}); err != nil {
		return err
	}
	if err := m.runHook(plugin, "afterEnable", plugin.AfterEnable, ctx); err != nil {
		return err
	}

	if err := m.bus.Emit(ctx, EventAfterEnablePlugin, Descriptor{Name: plugin.Name()}); err != nil {
		m.log.Warn("after enable listeners reported errors", zap.String("plugin", plugin.Name()), zap.Error(err))
	}
	return nil
}

// Disable marks the plugin disabled and runs AfterDisable.
func (m *Manager) Disable(ctx context.Context, name string) error {
	plugin, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if err := m.setState(ctx, plugin.Name(), map[string]any{"enabled": false}); err != nil {
		return err
	}
	if err := m.runHook(plugin, "afterDisable", plugin.AfterDisable, ctx); err != nil {
		return err
	}
	if err := m.bus.Emit(ctx, EventAfterDisablePlugin, Descriptor{Name: plugin.Name()}); err != nil {
		m.log.Warn("after disable listeners reported errors", zap.String("plugin", plugin.Name()), zap.Error(err))
	}
	return nil
}

// Remove runs the Remove hook, deletes the persisted state and unregisters the plugin.
func (m *Manager) Remove(ctx context.Context, name string) error {
	plugin, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if err := m.runHook(plugin, "remove", plugin.Remove, ctx); err != nil {
		return err
	}
	if err := m.db.WithContext(ctx).Delete(&models.ApplicationPlugin{}, "name = ?", plugin.Name()).Error; err != nil {
		return fmt.Errorf("plugins: delete state %s: %w", plugin.Name(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plugins, plugin.Name())
	for i, registered := range m.order {
		if registered == plugin.Name() {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// State returns the persisted lifecycle state of name.
func (m *Manager) State(ctx context.Context, name string) (models.ApplicationPlugin, error) {
	var state models.ApplicationPlugin
	err := m.db.WithContext(ctx).Take(&state, "name = ?", strings.TrimSpace(name)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return state, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if err != nil {
		return state, fmt.Errorf("plugins: load state %s: %w", name, err)
	}
	return state, nil
}

func (m *Manager) ordered() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plugins := make([]Plugin, 0, len(m.order))
	for _, name := range m.order {
		plugins = append(plugins, m.plugins[name])
	}
	return plugins
}

func (m *Manager) ensureState(ctx context.Context, name string) (models.ApplicationPlugin, error) {
	state := models.ApplicationPlugin{Name: name}
	err := m.db.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&state).Error
	if err != nil && database.IsUniqueConstraintError(err) {
		err = m.db.WithContext(ctx).Take(&state, "name = ?", name).Error
	}
	if err != nil {
		return state, fmt.Errorf("plugins: ensure state %s: %w", name, err)
	}
	return state, nil
}

func (m *Manager) setState(ctx context.Context, name string, values map[string]any) error {
	if err := m.db.WithContext(ctx).Model(&models.ApplicationPlugin{}).Where("name = ?", name).Updates(values).Error; err != nil {
		return fmt.Errorf("plugins: update state %s: %w", name, err)
	}
	return nil
}

func (m *Manager) runHook(plugin Plugin, hook string, fn func(context.Context) error, ctx context.Context) error {
	err := fn(ctx)
	result := "success"
	if err != nil {
		result = "failure"
		m.log.Error("plugin hook failed", zap.String("plugin", plugin.Name()), zap.String("hook", hook), zap.Error(err))
		err = fmt.Errorf("plugins: %s %s: %w", plugin.Name(), hook, err)
	}
	metrics.PluginHooks.WithLabelValues(plugin.Name(), hook, result).Inc()
	return err
}
