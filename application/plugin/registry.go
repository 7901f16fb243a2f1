package plugin

import "sync"

var (
	defaultRouter     *Router
	defaultRouterOnce sync.Once
)

// DefaultRouter returns the process-wide router the cgo trampolines
// forward to.
func DefaultRouter() *Router {
	defaultRouterOnce.Do(func() {
		if defaultRouter == nil {
			defaultRouter = NewRouter()
		}
	})
	return defaultRouter
}

// Register makes def the plugin the host installs. Call it from an init
// function or package-level var of the plugin's main package.
func Register(def *PluginDefinition) {
	if def == nil {
		panic("plugin: Register called with nil definition")
	}
	DefaultRouter().SetDefinition(def)
}
