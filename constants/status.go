package constants

// PresenceStatus is the derived occupancy state stored on employee documents.
type PresenceStatus string

// Stable values (store these exact strings).
const (
	StatusPresent    PresenceStatus = "present"    // arrived on or before today
	StatusFuture     PresenceStatus = "future"     // arrival after today or unknown
	StatusUnassigned PresenceStatus = "unassigned" // no property assigned
	StatusDeparted   PresenceStatus = "departed"   // orphan kept under the mark-departed policy
)
