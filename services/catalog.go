package services

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"quest-ledger/models"

	"github.com/gosimple/slug"
)

// DefaultQuests is the catalog used when QUEST_CATALOG_PATH is not set
var DefaultQuests = []models.Quest{
	{
		ID:          "beincom",
		Title:       "Signup Beincom",
		Description: "Join Beincom platform and earn 100 points",
		Reward:      100,
		URL:         "http://beincom.com/signup?partyId=tele-bot&uid={userId}",
	},
}

// Catalog is the static, ordered list of quests. It is never mutated after construction.
type Catalog struct {
	quests []models.Quest
	byID   map[string]int
}

// NewCatalog validates quests and fixes their order. Missing ids are derived from the title.
func NewCatalog(quests []models.Quest) (*Catalog, error) {
	if len(quests) == 0 {
		return nil, fmt.Errorf("quest catalog is empty")
	}
	c := &Catalog{
		quests: make([]models.Quest, 0, len(quests)),
		byID:   make(map[string]int, len(quests)),
	}
	for i, q := range quests {
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			q.ID = slug.Make(q.Title)
		}
		if q.ID == "" {
			return nil, fmt.Errorf("quest #%d has neither id nor title", i)
		}
		if q.Reward < 0 {
			return nil, fmt.Errorf("quest %q has negative reward %d", q.ID, q.Reward)
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate quest id %q", q.ID)
		}
		c.byID[q.ID] = len(c.quests)
		c.quests = append(c.quests, q)
	}
	return c, nil
}

// LoadCatalog reads a JSON array of quests from path, or returns the default catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultQuests)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quest catalog: %w", err)
	}
	var quests []models.Quest
	if err := json.Unmarshal(raw, &quests); err != nil {
		return nil, fmt.Errorf("parse quest catalog %s: %w", path, err)
	}
	return NewCatalog(quests)
}

// Quests returns the catalog in display order.
func (c *Catalog) Quests() []models.Quest {
	return append([]models.Quest(nil), c.quests...)
}

func (c *Catalog) Lookup(id string) (models.Quest, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Quest{}, false
	}
	return c.quests[i], true
}
