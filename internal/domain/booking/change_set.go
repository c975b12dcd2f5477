package booking

// FieldChange is a typed before/after record for one mutated field.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// ChangeSet collects the field changes of one accepted mutation. It is built
// once by the lifecycle controller and handed unchanged to the audit
// recorder and the response payload.
type ChangeSet []FieldChange

// Add appends a change when before and after differ.
func (cs ChangeSet) Add(field, before, after string) ChangeSet {
	if before == after {
		return cs
	}
	return append(cs, FieldChange{Field: field, Before: before, After: after})
}

// DiffBookings computes the change set between a pre- and post-mutation
// snapshot of the same booking.
func DiffBookings(before, after *Booking) ChangeSet {
	var cs ChangeSet
	cs = cs.Add("status", string(before.Status()), string(after.Status()))
	cs = cs.Add("scheduled_at", before.ScheduledAt().Format(timeLayout), after.ScheduledAt().Format(timeLayout))
	cs = cs.Add("customer_note", before.CustomerNote(), after.CustomerNote())
	cs = cs.Add("provider_note", before.ProviderNote(), after.ProviderNote())
	return cs
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// Snapshot returns a value copy of the booking so a pre-mutation state can
// be diffed after the aggregate has been modified in place.
func (b *Booking) Snapshot() *Booking {
	copied := *b
	copied.statusHistory = append([]StatusHistoryEntry(nil), b.statusHistory...)
	copied.notificationLedger = append([]NotificationEntry(nil), b.notificationLedger...)
	return &copied
}
