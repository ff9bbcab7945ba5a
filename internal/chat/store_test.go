package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessions() []Session {
	return []Session{
		{ID: 1, Title: "TrustFlow 技术原理"},
		{ID: 2, Title: "分布式限流算法"},
		{ID: 3, Title: "AI 绘图"},
		{ID: 4, Title: "Rate Limiter Design"},
	}
}

func TestStoreFilterSubstring(t *testing.T) {
	var s SessionStore
	s.Replace(testSessions())

	got := s.Filter("限流")
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0].ID)
}

func TestStoreFilterCaseInsensitive(t *testing.T) {
	var s SessionStore
	s.Replace(testSessions())

	got := s.Filter("rate limiter")
	require.Len(t, got, 1)
	assert.EqualValues(t, 4, got[0].ID)
}

func TestStoreFilterEmptyQueryReturnsAll(t *testing.T) {
	var s SessionStore
	s.Replace(testSessions())

	assert.Len(t, s.Filter(""), 4)
}

func TestStoreFilterNoMatch(t *testing.T) {
	var s SessionStore
	s.Replace(testSessions())

	assert.Empty(t, s.Filter("量子计算"))
}

func TestStoreSearchRanksMatches(t *testing.T) {
	var s SessionStore
	s.Replace(testSessions())

	got := s.Search("rate limiter")
	require.NotEmpty(t, got)
	assert.EqualValues(t, 4, got[0].ID)
}

func TestStoreReplaceIsWholesale(t *testing.T) {
	var s SessionStore
	s.Replace(testSessions())
	require.Equal(t, 4, s.Len())

	s.Replace([]Session{{ID: 9, Title: "fresh"}})
	all := s.All()
	require.Len(t, all, 1)
	assert.EqualValues(t, 9, all[0].ID)
}

func TestStoreAllReturnsCopy(t *testing.T) {
	var s SessionStore
	s.Replace(testSessions())

	all := s.All()
	all[0].Title = "mutated"
	assert.Equal(t, "TrustFlow 技术原理", s.All()[0].Title)
}
