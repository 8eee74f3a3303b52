// Package app composes the TravelTies backend from its stores and services.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Domain models (trip, card, user, expense, ...)
//	├── storage/            # Store interfaces plus memory/ and postgres/
//	├── services/           # Business logic, one package per resource
//	├── httpapi/            # REST handlers and routing
//	├── realtime/           # Websocket hub for trip events
//	├── jobs/               # Cron maintenance jobs
//	├── system/             # Lifecycle manager
//	├── runtime/            # Process wiring from configuration
//	└── metrics/            # Prometheus collectors
//
// # Adding a Resource
//
//  1. Create domain models in internal/app/domain/<name>/
//  2. Add the store interface to internal/app/storage/interfaces.go
//  3. Implement it in internal/app/storage/postgres/ and memory/
//  4. Create the service in internal/app/services/<name>/
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/
package app
