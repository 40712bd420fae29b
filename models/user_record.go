package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// UserRecord is the per-user ledger entry stored under "user:<userId>"
type UserRecord struct {
	UserID     string                 `json:"userId"`
	Points     int64                  `json:"points"`
	QuestState map[string]QuestStatus `json:"questState"`
	CreatedAt  time.Time              `json:"createdAt"`
}

const userKeyPrefix = "user:"

// UserKey returns the store key for a user record.
func UserKey(userID string) string {
	return userKeyPrefix + userID
}

// UserKeyPrefix is the common prefix of every user record key
func UserKeyPrefix() string {
	return userKeyPrefix
}

// NewUserRecord builds the default record: every catalog quest PENDING, zero points.
func NewUserRecord(userID string, quests []Quest, now time.Time) *UserRecord {
	state := make(map[string]QuestStatus, len(quests))
	for _, q := range quests {
		state[q.ID] = QuestStatusPending
	}
	return &UserRecord{
		UserID:     userID,
		Points:     0,
		QuestState: state,
		CreatedAt:  now.UTC(),
	}
}

// StatusOf returns the user's status for a quest; quests added to the catalog
// after the record was created read as PENDING.
func (u *UserRecord) StatusOf(questID string) QuestStatus {
	if s, ok := u.QuestState[questID]; ok && s != "" {
		return s
	}
	return QuestStatusPending
}

// UnmarshalJSON also reads records written before the ledger existed, which
// used "telegramId" for the user and "quests" for the per-quest status map.
func (u *UserRecord) UnmarshalJSON(data []byte) error {
	type plain UserRecord
	var aux struct {
		plain
		TelegramID json.RawMessage        `json:"telegramId"`
		Quests     map[string]QuestStatus `json:"quests"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	rec := UserRecord(aux.plain)

	if len(rec.QuestState) == 0 && len(aux.Quests) > 0 {
		rec.QuestState = aux.Quests
	}
	if rec.UserID == "" && len(aux.TelegramID) > 0 {
		id, err := legacyUserID(aux.TelegramID)
		if err != nil {
			return err
		}
		rec.UserID = id
	}
	*u = rec
	return nil
}

// telegram ids were stored either as strings or as integers
func legacyUserID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", err
	}
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}
