// Package system starts and stops long-running application components.
package system

import "context"

// Service represents a lifecycle-managed component such as the job scheduler
// or the realtime hub.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
