package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// QuestStatus is a user's position in a quest's PENDING → VERIFIED → CLAIMED progression
type QuestStatus string

const (
	QuestStatusPending  QuestStatus = "PENDING"
	QuestStatusVerified QuestStatus = "VERIFIED"
	QuestStatusClaimed  QuestStatus = "CLAIMED"
)

// Wire values used by the mini-app client (and by records written before the ledger existed)
const (
	WireStatusDo      = "DO"
	WireStatusClaim   = "CLAIM"
	WireStatusClaimed = "CLAIMED"
)

// ParseQuestStatus accepts both ledger names and the legacy client names.
func ParseQuestStatus(s string) (QuestStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(QuestStatusPending), WireStatusDo:
		return QuestStatusPending, nil
	case string(QuestStatusVerified), WireStatusClaim:
		return QuestStatusVerified, nil
	case string(QuestStatusClaimed):
		return QuestStatusClaimed, nil
	}
	return "", fmt.Errorf("unknown quest status %q", s)
}

// Wire maps the status onto the DO / CLAIM / CLAIMED values the client renders.
func (s QuestStatus) Wire() string {
	switch s {
	case QuestStatusVerified:
		return WireStatusClaim
	case QuestStatusClaimed:
		return WireStatusClaimed
	default:
		return WireStatusDo
	}
}

// rank orders statuses so transitions can be checked as "forward only"
func (s QuestStatus) rank() int {
	switch s {
	case QuestStatusVerified:
		return 1
	case QuestStatusClaimed:
		return 2
	default:
		return 0
	}
}

// CanAdvanceTo reports whether next is exactly one step after s.
func (s QuestStatus) CanAdvanceTo(next QuestStatus) bool {
	return next.rank() == s.rank()+1
}

func (s *QuestStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseQuestStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Quest is a static catalog entry. URL may carry a {userId} placeholder.
type Quest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
	URL         string `json:"url"`
}

const userIDPlaceholder = "{userId}"

// LinkFor renders the quest's external URL for one user
func (q Quest) LinkFor(userID string) string {
	return strings.ReplaceAll(q.URL, userIDPlaceholder, url.QueryEscape(userID))
}

// QuestView is the catalog entry joined with a user's progress, as returned to clients
type QuestView struct {
	QuestID     string `json:"questId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
	Status      string `json:"status"`
	URL         string `json:"url"`
}

// TransitionResult is what Verify and Claim hand back to callers.
// Changed is false when the call was an idempotent no-op.
type TransitionResult struct {
	Status  QuestStatus
	Changed bool
	Points  int64
}
