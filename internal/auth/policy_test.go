package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList(" 1, 22 ,,-100123 ")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 22, -100123}, ids)

	ids, err = ParseIDList("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseIDList("1,abc")
	assert.Error(t, err)
}

func TestPolicy_EmptyListsAllowEveryone(t *testing.T) {
	p := NewPolicyService(nil, nil, nil)

	assert.True(t, p.IsAllowed(5))
	assert.True(t, p.IsChatAllowed(-100))
	assert.True(t, p.IsCommandAllowed(5, "search"))
	assert.False(t, p.IsCommandAllowed(5, "reindex"))
}

func TestPolicy_Restricted(t *testing.T) {
	p := NewPolicyService([]int64{1}, []int64{2}, []int64{-100})

	assert.True(t, p.IsAllowed(1), "admins are always allowed")
	assert.True(t, p.IsAllowed(2))
	assert.False(t, p.IsAllowed(3))

	assert.True(t, p.IsChatAllowed(-100))
	assert.False(t, p.IsChatAllowed(-200))

	assert.True(t, p.IsCommandAllowed(1, "reindex"))
	assert.False(t, p.IsCommandAllowed(2, "reindex"))
	assert.True(t, p.IsCommandAllowed(2, "ask"))
	assert.False(t, p.IsCommandAllowed(3, "search"))
	assert.False(t, p.IsCommandAllowed(2, "unknown"))
}
