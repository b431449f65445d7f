package models

import "time"

// InstanceStatus is the lifecycle state of one scheduled occurrence.
type InstanceStatus string

const (
	InstancePending   InstanceStatus = "pending"
	InstanceDelivered InstanceStatus = "delivered"
	InstanceResolved  InstanceStatus = "resolved"
	InstanceExpired   InstanceStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceResolved || s == InstanceExpired
}

// ReminderDefinition is a user's standing intent to be reminded.
// RuleSpec is the encoded recurrence rule (see internal/recurrence).
// Timezone is the owner's IANA zone name; every stored instant is UTC.
type ReminderDefinition struct {
	DefinitionID  int64      `json:"definition_id"`
	OwnerID       int64      `json:"owner_id"`
	Domain        string     `json:"domain"`
	Message       string     `json:"message"`
	RuleSpec      string     `json:"rule_spec"`
	Timezone      string     `json:"timezone"`
	Active        bool       `json:"active"`
	Tracked       bool       `json:"tracked"`
	LastError     string     `json:"last_error"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at"`
}

// ReminderInstance is one concrete occurrence of a definition firing.
// OwnerID and Domain are denormalized from the definition so the
// resolution path does not need a join.
type ReminderInstance struct {
	InstanceID   int64          `json:"instance_id"`
	DefinitionID int64          `json:"definition_id"`
	OwnerID      int64          `json:"owner_id"`
	Domain       string         `json:"domain"`
	ScheduledAt  time.Time      `json:"scheduled_at"`
	Status       InstanceStatus `json:"status"`
	DeliveredAt  *time.Time     `json:"delivered_at"`
	CreatedAt    time.Time      `json:"created_at"`
}
