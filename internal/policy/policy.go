// Package policy serves operator-managed key/value settings that change at
// runtime without a deploy, such as the purge grace period.
package policy

// Key names a policy row.
type Key string

const (
	// KeyUserPurgeCutoffDays is the number of days a withdrawn account stays
	// disabled before its identity provider account is deleted.
	KeyUserPurgeCutoffDays Key = "user_purge_cutoff_days"
	// KeyUserRegisterBaseGroup is the group assigned on registration.
	KeyUserRegisterBaseGroup Key = "user_register_base_group"
	// KeyUserEnabledRegister toggles new registrations.
	KeyUserEnabledRegister Key = "user_enabled_register"
)

// Policy is one stored setting.
type Policy struct {
	Key   Key
	Value string
}
