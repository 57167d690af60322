package transport

import "time"

type UserIDParam struct {
	UserID string `uri:"userId" validate:"required,uuid"`
}

type WithdrawRequestResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Email         string    `json:"email"`
	PurgeStatus   string    `json:"purgeStatus"`
	PurgeTryCount int       `json:"purgeTryCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type ProcessHistoryResponse struct {
	Process     string    `json:"process"`
	IsPassed    bool      `json:"isPassed"`
	ProcessedAt time.Time `json:"processedAt"`
}

type WithdrawDetailResponse struct {
	Request WithdrawRequestResponse  `json:"request"`
	History []ProcessHistoryResponse `json:"history"`
}

type PurgeQueuedResponse struct {
	TaskID string `json:"taskId"`
}
