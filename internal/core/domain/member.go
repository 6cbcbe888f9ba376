package domain

// MemberStatus is the membership standing of a cooperative member.
type MemberStatus string

const (
	MemberActive   MemberStatus = "ACTIVE"
	MemberInactive MemberStatus = "INACTIVE"
)

// Member is a cooperative member. Each active member implicitly owns at most
// one capital account per ledger kind.
type Member struct {
	MemberID string       `json:"memberID"`
	Name     string       `json:"name"`
	Tier     string       `json:"tier"`
	Status   MemberStatus `json:"status"`
	AuditFields
}
