package outbox

// EventUserWithdraw is published once per accepted withdrawal. Downstream
// services delete the user's notes and images when they receive it.
const EventUserWithdraw = "user-withdraw"

// UserWithdrawEvent is the payload of EventUserWithdraw.
type UserWithdrawEvent struct {
	UID string `json:"uid"`
}
