package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind names what happened to a ledger entity.
type EventKind string

const (
	EventTransactionCreated EventKind = "transaction.created"
	EventTransactionUpdated EventKind = "transaction.updated"
	EventTransactionDeleted EventKind = "transaction.deleted"
	EventTransferCreated    EventKind = "transfer.created"
	EventTransferUpdated    EventKind = "transfer.updated"
	EventTransferDeleted    EventKind = "transfer.deleted"
	EventBalanceCorrected   EventKind = "account.balance_corrected"
	EventDebtPaidOff        EventKind = "debt.paid_off"
	EventInvestmentMatured  EventKind = "investment.matured"
)

// LedgerEvent is published after a ledger write commits. It carries only
// identifiers; consumers read the current row from the database.
type LedgerEvent struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	UserID     int64     `json:"user_id"`
	EntityID   int64     `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewLedgerEvent(kind EventKind, userID, entityID int64) *LedgerEvent {
	return &LedgerEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserID:     userID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GenerationRequest asks a recurring worker to run the daily generation
// batch. An empty Date means the worker's current day; an empty Type means
// both income and expense templates.
type GenerationRequest struct {
	ID          string    `json:"id"`
	DryRun      bool      `json:"dry_run"`
	Type        string    `json:"type,omitempty"`
	Date        string    `json:"date,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewGenerationRequest(dryRun bool, txType, date string) *GenerationRequest {
	return &GenerationRequest{
		ID:          uuid.NewString(),
		DryRun:      dryRun,
		Type:        txType,
		Date:        date,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *GenerationRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func GenerationRequestFromJSON(data []byte) (*GenerationRequest, error) {
	var msg GenerationRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
