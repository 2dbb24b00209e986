// Package catalog describes the outbound links the homepage serves and the
// identifiers their clicks are counted under.
package catalog

import (
	"encoding/json"
	"strings"
)

// BackupSuffix marks the identifier of a link's backup route so backup
// traffic is never merged into the primary link's counts.
const BackupSuffix = "_backup"

type Category string

const (
	CategoryLink   Category = "link"
	CategoryFriend Category = "friend"
)

type Link struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Emoji     string `json:"emoji,omitempty"`
	Note      string `json:"note,omitempty"`
	URL       string `json:"url"`
	BackupURL string `json:"backup_url,omitempty"`
}

type Friend struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Entry is one counted identifier as shown on the dashboard.
type Entry struct {
	ID       string
	Name     string
	Emoji    string
	Category Category
	Backup   bool
}

type Catalog struct {
	Links   []Link
	Friends []Friend
}

func BackupID(id string) string {
	return id + BackupSuffix
}

func IsBackupID(id string) bool {
	return strings.HasSuffix(id, BackupSuffix)
}

// BackupName is the display name recorded for backup-route clicks.
func BackupName(name string) string {
	return name + " (backup)"
}

// ParseLinks decodes a JSON array of links. Entries without an id are skipped.
func ParseLinks(raw string) ([]Link, error) {
	var links []Link
	if err := decode(raw, &links); err != nil {
		return nil, err
	}
	out := links[:0]
	for _, l := range links {
		if l.ID != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

func ParseFriends(raw string) ([]Friend, error) {
	var friends []Friend
	if err := decode(raw, &friends); err != nil {
		return nil, err
	}
	out := friends[:0]
	for _, f := range friends {
		if f.ID != "" {
			out = append(out, f)
		}
	}
	return out, nil
}

func decode(raw string, v any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

// Resolve returns the redirect target for a link. A backup request for a
// link without a backup URL falls through to the primary URL.
func (c Catalog) Resolve(id string, backup bool) (Link, string, bool) {
	for _, l := range c.Links {
		if l.ID != id {
			continue
		}
		if backup && l.BackupURL != "" {
			return l, l.BackupURL, true
		}
		if l.URL == "" {
			return Link{}, "", false
		}
		return l, l.URL, true
	}
	return Link{}, "", false
}

func (c Catalog) Friend(id string) (Friend, bool) {
	for _, f := range c.Friends {
		if f.ID == id && f.URL != "" {
			return f, true
		}
	}
	return Friend{}, false
}

// Entries lists every identifier the dashboard reports on: each link, its
// backup route when it has one, then the partner links.
func (c Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.Links)*2+len(c.Friends))
	for _, l := range c.Links {
		out = append(out, Entry{ID: l.ID, Name: l.Name, Emoji: l.Emoji, Category: CategoryLink})
		if l.BackupURL != "" {
			out = append(out, Entry{
				ID:       BackupID(l.ID),
				Name:     BackupName(l.Name),
				Emoji:    l.Emoji,
				Category: CategoryLink,
				Backup:   true,
			})
		}
	}
	for _, f := range c.Friends {
		out = append(out, Entry{ID: f.ID, Name: f.Name, Category: CategoryFriend})
	}
	return out
}
