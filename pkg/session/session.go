// Package session derives the device-bound player identity. The sim has no
// accounts: one machine resumes one session.
package session

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

// DeviceID fetches a stable identifier for the running machine, hashed with
// an app-specific key so the raw machine id never leaves the process. Falls
// back to a random id when the platform cannot provide one.
func DeviceID() string {
	id, err := machineid.ProtectedID("tradesim-core")
	if err != nil {
		return uuid.NewString()
	}
	return id
}
