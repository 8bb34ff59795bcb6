// Package interfaces documents the core abstractions of the storage engine and
// holds the compile-time checks that bind them to their implementations.
//
// # Interface Categories
//
// ## Persistence
//
//   - storage.Repository: one backend (internal/database/current, internal/database/legacy)
//   - flags.SettingsRepository: key/value runtime settings (internal/database/settings)
//   - health.MetaStore, migration.MarkerStore: JSON metadata (internal/database/meta)
//
// ## Storage Engine
//
//   - flags.Store: backend selection and dual-run flag (internal/flags)
//   - storage.Migrator: legacy-to-current migration (internal/migration)
//   - storage.HealthMonitor: failure counting and auto-fallback (internal/health)
//   - storage.Notifier: user-facing quota alerts (internal/storage)
//
// ## Outer Surfaces
//
//   - http.Library: the facade as seen by handlers (internal/http/config.go)
//   - scheduler.DualReader: periodic backend comparison (internal/scheduler)
//   - tasks.CoverLibrary, covers.Resolver: cover lookup (internal/tasks, internal/covers)
//
// # Adding a New Backend
//
// To serve the library from another store:
//
//  1. Create a sub-package under internal/database/ with a Repository
//     implementing storage.Repository.
//
//  2. Add a flags.Backend value and teach the facade's begin() to pick it.
//
//  3. Add a compile-time check:
//
//     var _ storage.Repository = (*mystore.Repository)(nil)
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// This pattern is used throughout the codebase. See checks.go for examples.
package interfaces
