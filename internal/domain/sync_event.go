package domain

import (
	"time"

	"github.com/google/uuid"
)

type SyncEventStatus string

const (
	SyncPending SyncEventStatus = "pending"
	SyncSuccess SyncEventStatus = "success"
	SyncFailed  SyncEventStatus = "failed"
)

// SyncEvent is one append-only audit row per attempted transition.
// Created pending before the push, resolved exactly once afterwards;
// a later cycle never touches rows from an earlier one.
type SyncEvent struct {
	ID            uuid.UUID
	PosProductID  string
	ProductName   string
	Action        SyncAction
	Status        SyncEventStatus
	ErrorMessage  *string
	StockQuantity int
	CreatedAtUtc  time.Time
}

func NewSyncEvent(t Transition) *SyncEvent {
	return &SyncEvent{
		ID:            uuid.New(),
		PosProductID:  t.PosProductID,
		ProductName:   t.ProductName,
		Action:        t.Action,
		Status:        SyncPending,
		StockQuantity: t.StockQuantity,
		CreatedAtUtc:  time.Now().UTC(),
	}
}
