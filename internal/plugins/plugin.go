package plugins

import "context"

// Plugin is the lifecycle contract a host-managed plugin implements. Every hook is an
// entry point invoked by the Manager; hooks never call each other.
type Plugin interface {
	// Name is the unique registration name, e.g. "system-settings".
	Name() string
	AfterAdd(ctx context.Context) error
	BeforeLoad(ctx context.Context) error
	Load(ctx context.Context) error
	Install(ctx context.Context) error
	AfterEnable(ctx context.Context) error
	AfterDisable(ctx context.Context) error
	Remove(ctx context.Context) error
}

// Descriptor identifies a plugin in event payloads.
type Descriptor struct {
	Name string `json:"name"`
}

// BasePlugin provides no-op hooks so plugins only implement what they need.
type BasePlugin struct{}

func (BasePlugin) AfterAdd(context.Context) error     { return nil }
func (BasePlugin) BeforeLoad(context.Context) error   { return nil }
func (BasePlugin) Load(context.Context) error         { return nil }
func (BasePlugin) Install(context.Context) error      { return nil }
func (BasePlugin) AfterEnable(context.Context) error  { return nil }
func (BasePlugin) AfterDisable(context.Context) error { return nil }
func (BasePlugin) Remove(context.Context) error       { return nil }
