package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"quest-ledger/models"

	"github.com/google/uuid"
)

var (
	ErrInvalidUser       = errors.New("user id is required")
	ErrUnknownQuest      = errors.New("unknown quest")
	ErrInvalidTransition = errors.New("quest not ready for this action")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// QuestLedger owns every UserRecord: it is the only writer, and every write is
// one read-modify-write under the store's per-key exclusion.
type QuestLedger struct {
	store   KVStore
	catalog *Catalog
	timeout time.Duration
	now     func() time.Time
}

func NewQuestLedger(store KVStore, catalog *Catalog, timeout time.Duration) *QuestLedger {
	return &QuestLedger{
		store:   store,
		catalog: catalog,
		timeout: timeout,
		now:     time.Now,
	}
}

func (l *QuestLedger) Catalog() *Catalog {
	return l.catalog
}

// GetOrCreateUser returns the stored record, creating the default one on first access.
func (l *QuestLedger) GetOrCreateUser(ctx context.Context, userID string) (*models.UserRecord, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}

	rctx, cancel := context.WithTimeout(ctx, l.timeout)
	raw, found, err := l.store.Get(rctx, models.UserKey(userID))
	cancel()
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if found {
		rec, err := decodeRecord(raw, userID)
		if err != nil {
			return nil, storeErr("get user", err)
		}
		return rec, nil
	}

	// lost races to a concurrent creator fall through to "no change" inside mutate
	return l.mutate(ctx, userID, func(*models.UserRecord) ([]models.QuestEvent, error) {
		return nil, nil
	})
}

// ListQuests joins the catalog with the user's progress, in catalog order.
func (l *QuestLedger) ListQuests(ctx context.Context, userID string) ([]models.QuestView, error) {
	rec, err := l.GetOrCreateUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	quests := l.catalog.Quests()
	views := make([]models.QuestView, 0, len(quests))
	for _, q := range quests {
		views = append(views, models.QuestView{
			QuestID:     q.ID,
			Title:       q.Title,
			Description: q.Description,
			Reward:      q.Reward,
			Status:      rec.StatusOf(q.ID).Wire(),
			URL:         q.LinkFor(userID),
		})
	}
	return views, nil
}

// Verify moves a quest from PENDING to VERIFIED. Repeating it is a no-op.
func (l *QuestLedger) Verify(ctx context.Context, userID, questID string) (models.TransitionResult, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return models.TransitionResult{}, err
	}
	quest, ok := l.catalog.Lookup(questID)
	if !ok {
		return models.TransitionResult{}, fmt.Errorf("%w: %q", ErrUnknownQuest, questID)
	}

	var res models.TransitionResult
	rec, err := l.mutate(ctx, userID, func(rec *models.UserRecord) ([]models.QuestEvent, error) {
		cur := rec.StatusOf(quest.ID)
		res = models.TransitionResult{Status: cur}
		if !cur.CanAdvanceTo(models.QuestStatusVerified) {
			return nil, nil
		}
		rec.QuestState[quest.ID] = models.QuestStatusVerified
		res = models.TransitionResult{Status: models.QuestStatusVerified, Changed: true}
		return []models.QuestEvent{l.event(userID, quest.ID, cur, models.QuestStatusVerified, 0)}, nil
	})
	if err != nil {
		return models.TransitionResult{}, err
	}
	res.Points = rec.Points
	if res.Changed {
		log.Printf("✅ [LEDGER] Quest verified: user=%s quest=%s", userID, quest.ID)
	}
	return res, nil
}

// Claim moves a quest from VERIFIED to CLAIMED and credits its reward in the same write.
func (l *QuestLedger) Claim(ctx context.Context, userID, questID string) (models.TransitionResult, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return models.TransitionResult{}, err
	}
	quest, ok := l.catalog.Lookup(questID)
	if !ok {
		return models.TransitionResult{}, fmt.Errorf("%w: %q", ErrUnknownQuest, questID)
	}

	var res models.TransitionResult
	rec, err := l.mutate(ctx, userID, func(rec *models.UserRecord) ([]models.QuestEvent, error) {
		cur := rec.StatusOf(quest.ID)
		switch cur {
		case models.QuestStatusClaimed:
			res = models.TransitionResult{Status: cur}
			return nil, nil
		case models.QuestStatusVerified:
			rec.QuestState[quest.ID] = models.QuestStatusClaimed
			rec.Points += quest.Reward
			res = models.TransitionResult{Status: models.QuestStatusClaimed, Changed: true}
			return []models.QuestEvent{l.event(userID, quest.ID, cur, models.QuestStatusClaimed, quest.Reward)}, nil
		default:
			return nil, fmt.Errorf("%w: quest %q is %s", ErrInvalidTransition, quest.ID, cur)
		}
	})
	if err != nil {
		return models.TransitionResult{}, err
	}
	res.Points = rec.Points
	if res.Changed {
		log.Printf("🎉 [LEDGER] Reward claimed: user=%s quest=%s +%d → points=%d", userID, quest.ID, quest.Reward, rec.Points)
	}
	return res, nil
}

// Events lists a user's committed transitions, newest first.
func (l *QuestLedger) Events(ctx context.Context, userID string) ([]models.QuestEvent, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	rctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	events, err := l.store.Events(rctx, userID)
	if err != nil {
		return nil, storeErr("list events", err)
	}
	return events, nil
}

type applyFunc func(rec *models.UserRecord) ([]models.QuestEvent, error)

// mutate loads (or creates) the user's record under the key lock, applies fn and
// persists the result if fn changed anything or the record is new.
func (l *QuestLedger) mutate(ctx context.Context, userID string, fn applyFunc) (*models.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var out *models.UserRecord
	err := l.store.Update(ctx, models.UserKey(userID), func(cur []byte, found bool) (*Mutation, error) {
		var rec *models.UserRecord
		if found {
			decoded, err := decodeRecord(cur, userID)
			if err != nil {
				return nil, err
			}
			rec = decoded
		} else {
			rec = models.NewUserRecord(userID, l.catalog.Quests(), l.now())
			log.Printf("🆕 [LEDGER] Creating record for user %s", userID)
		}
		if rec.QuestState == nil {
			rec.QuestState = make(map[string]models.QuestStatus)
		}

		events, err := fn(rec)
		if err != nil {
			return nil, err
		}
		out = rec
		if found && len(events) == 0 {
			return nil, nil
		}

		value, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode user record: %w", err)
		}
		return &Mutation{Value: value, Events: events}, nil
	})
	if err != nil {
		return nil, storeErr("update user", err)
	}
	return out, nil
}

func (l *QuestLedger) event(userID, questID string, from, to models.QuestStatus, delta int64) models.QuestEvent {
	return models.QuestEvent{
		ID:          uuid.NewString(),
		UserID:      userID,
		QuestID:     questID,
		From:        from,
		To:          to,
		PointsDelta: delta,
		CreatedAt:   l.now().UTC(),
	}
}

// decodeRecord reads a stored record; userID fills in records that never carried one.
func decodeRecord(raw []byte, userID string) (*models.UserRecord, error) {
	var rec models.UserRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	if rec.UserID == "" {
		rec.UserID = userID
	}
	if rec.QuestState == nil {
		rec.QuestState = make(map[string]models.QuestStatus)
	}
	return &rec, nil
}

// normalizeUserID is the single place user ids are cleaned up, so " u1" and
// "u1" always address the same record.
func normalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidUser
	}
	return userID, nil
}

// storeErr passes ledger errors through and folds everything else (I/O,
// timeouts, undecodable records) into ErrStoreUnavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, ErrUnknownQuest) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrInvalidUser) {
		return err
	}
	log.Printf("❌ [LEDGER] %s failed: %v", op, err)
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
