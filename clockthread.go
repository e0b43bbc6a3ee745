// clockthread.go
package main

import (
	"context"

	"liftsim/elevsystem"
)

// clockThread drives the fleet. A clock failure is fatal for the process.
func clockThread(ctx context.Context, sys *elevsystem.System) error {
	return sys.Clock().Run(ctx)
}
