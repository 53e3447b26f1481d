// Package sketchd provides the public API for embedding the sketchd
// service. This is the stable surface for external consumers; the
// wiring lives in internal/runtime.
package sketchd

import (
	"github.com/infrasketch/sketchd/internal/runtime"
)

// Service is the assembled sketchd application.
// See internal/runtime.Service for full documentation.
type Service = runtime.Service

// Option configures a Service before assembly.
type Option = runtime.Option

// New builds a Service with the given options.
// Example:
//
//	svc, err := sketchd.New(
//	    sketchd.WithConfigFile("config.yaml"),
//	    sketchd.WithSQLiteStorage("./data/sketchd.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithConfig     = runtime.WithConfig
	WithConfigFile = runtime.WithConfigFile

	// Storage
	WithMemoryStorage   = runtime.WithMemoryStorage
	WithSQLiteStorage   = runtime.WithSQLiteStorage
	WithPostgresStorage = runtime.WithPostgresStorage

	// Events
	WithDirectEvents = runtime.WithDirectEvents
	WithNATSEvents   = runtime.WithNATSEvents

	// Advanced options
	WithLogger    = runtime.WithLogger
	WithStore     = runtime.WithStore
	WithAssistant = runtime.WithAssistant
	WithRenderer  = runtime.WithRenderer
	WithPublisher = runtime.WithPublisher
)
