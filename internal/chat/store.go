package chat

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// SessionStore caches the session list for sidebar display. List-time order
// is whatever the backend returned; the client imposes none. Only the
// reconciler writes to it.
type SessionStore struct {
	sessions []Session
}

// Replace swaps the cached collection wholesale. There is no incremental
// merge; callers re-list after any mutation that could add a session.
func (s *SessionStore) Replace(sessions []Session) {
	replaced := make([]Session, len(sessions))
	copy(replaced, sessions)
	s.sessions = replaced
}

// All returns a copy of the cached sessions.
func (s *SessionStore) All() []Session {
	out := make([]Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Len reports the number of cached sessions.
func (s *SessionStore) Len() int {
	return len(s.sessions)
}

// Filter returns the sessions whose title contains query, case-insensitive.
// Pure and synchronous; never touches the network. An empty query returns
// everything.
func (s *SessionStore) Filter(query string) []Session {
	if query == "" {
		return s.All()
	}
	needle := strings.ToLower(query)
	var matched []Session
	for _, session := range s.sessions {
		if strings.Contains(strings.ToLower(session.Title), needle) {
			matched = append(matched, session)
		}
	}
	return matched
}

// Search returns sessions ranked by fuzzy match quality against query.
// This backs the sidebar search box, which tolerates typos; Filter stays
// exact-substring for programmatic use.
func (s *SessionStore) Search(query string) []Session {
	if query == "" {
		return s.All()
	}
	titles := make([]string, len(s.sessions))
	for i, session := range s.sessions {
		titles[i] = session.Title
	}
	ranks := fuzzy.RankFindNormalizedFold(query, titles)
	sort.Sort(ranks)
	matched := make([]Session, 0, len(ranks))
	for _, rank := range ranks {
		matched = append(matched, s.sessions[rank.OriginalIndex])
	}
	return matched
}
