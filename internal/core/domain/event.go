package domain

import (
	"encoding/json"
	"time"
)

// AggregateType identifies the stream family an event belongs to.
type AggregateType string

const (
	AggregateAccount      AggregateType = "ACCOUNT"
	AggregateTransaction  AggregateType = "TRANSACTION"
	AggregatePeriod       AggregateType = "PERIOD"
	AggregateMember       AggregateType = "MEMBER"
	AggregateContribution AggregateType = "CONTRIBUTION"
	AggregateClaim        AggregateType = "PATRONAGE_CLAIM"
	AggregateAllocation   AggregateType = "ALLOCATION"
	AggregateDistribution AggregateType = "DISTRIBUTION"
	AggregateCapital      AggregateType = "CAPITAL_ACCOUNT"
	AggregateCloseFlow    AggregateType = "PERIOD_CLOSE"
)

// EventType names a domain event. The projector and reactors dispatch on it.
type EventType string

const (
	EventAccountOpened        EventType = "ACCOUNT_OPENED"
	EventAccountDeactivated   EventType = "ACCOUNT_DEACTIVATED"
	EventTransactionPosted    EventType = "TRANSACTION_POSTED"
	EventTransactionVoided    EventType = "TRANSACTION_VOIDED"
	EventPeriodOpened         EventType = "PERIOD_OPENED"
	EventPeriodClosing        EventType = "PERIOD_CLOSING"
	EventPeriodClosed         EventType = "PERIOD_CLOSED"
	EventPeriodLocked         EventType = "PERIOD_LOCKED"
	EventPeriodReopened       EventType = "PERIOD_REOPENED"
	EventMemberEnrolled       EventType = "MEMBER_ENROLLED"
	EventContribSubmitted     EventType = "CONTRIBUTION_SUBMITTED"
	EventContribApproved      EventType = "CONTRIBUTION_APPROVED"
	EventContribRejected      EventType = "CONTRIBUTION_REJECTED"
	EventClaimCreated         EventType = "PATRONAGE_CLAIM_CREATED"
	EventClaimRevoked         EventType = "PATRONAGE_CLAIM_REVOKED"
	EventAllocationProposed   EventType = "ALLOCATION_PROPOSED"
	EventAllocationApproved   EventType = "ALLOCATION_APPROVED"
	EventAllocationExecuted   EventType = "ALLOCATION_EXECUTED"
	EventAllocationDeleted    EventType = "ALLOCATION_DELETED"
	EventCapitalCredited      EventType = "CAPITAL_ACCOUNT_CREDITED"
	EventCapitalDebited       EventType = "CAPITAL_ACCOUNT_DEBITED"
	EventDistribScheduled     EventType = "DISTRIBUTION_SCHEDULED"
	EventDistribProcessing    EventType = "DISTRIBUTION_PROCESSING"
	EventDistribCompleted     EventType = "DISTRIBUTION_COMPLETED"
	EventDistribFailed        EventType = "DISTRIBUTION_FAILED"
	EventDistribCancelled     EventType = "DISTRIBUTION_CANCELLED"
	EventCloseStepStarted     EventType = "PERIOD_CLOSE_STEP_STARTED"
	EventCloseStepCompleted   EventType = "PERIOD_CLOSE_STEP_COMPLETED"
	EventCloseStepFailed      EventType = "PERIOD_CLOSE_STEP_FAILED"
	EventCloseApprovalLogged  EventType = "PERIOD_CLOSE_APPROVAL_LOGGED"
	EventCloseCompensated     EventType = "PERIOD_CLOSE_COMPENSATED"
	EventCloseParkedForManual EventType = "PERIOD_CLOSE_PARKED_FOR_MANUAL"
)

// EventMetadata travels with every event for tracing causality across contexts.
type EventMetadata struct {
	CorrelationID string `json:"correlationID"`
	CausationID   string `json:"causationID,omitempty"`
	ActorID       string `json:"actorID,omitempty"`
}

// Event is the immutable, append-only source-of-truth record. Events are
// uniquely ordered per (AggregateType, AggregateID) by SequenceNumber and
// globally by GlobalSequence.
type Event struct {
	EventID        string          `json:"eventID"`
	AggregateType  AggregateType   `json:"aggregateType"`
	AggregateID    string          `json:"aggregateID"`
	EventType      EventType       `json:"eventType"`
	Payload        json.RawMessage `json:"payload"`
	Metadata       EventMetadata   `json:"metadata"`
	SequenceNumber int64           `json:"sequenceNumber"`
	GlobalSequence int64           `json:"globalSequence"`
	OccurredAt     time.Time       `json:"occurredAt"`
}
