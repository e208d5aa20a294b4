package engine

import (
	"github.com/spaghettifunk/texstream/engine/systems"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// SystemManager is set by the engine before FnInitialize runs.
	SystemManager *systems.SystemManager
	State         interface{}
	FnBoot        Boot
	FnInitialize  Initialize
	FnUpdate      Update
	FnShutdown    Shutdown
}

type Boot func() error
type Initialize func() error
type Update func(deltaTime float64) error
type Shutdown func() error
