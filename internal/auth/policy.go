package auth

import (
	"fmt"
	"strconv"
	"strings"
)

// PolicyService manages who may talk to the bot and run which commands.
type PolicyService struct {
	AdminUserIDs   map[int64]bool // map of admin user IDs
	AllowedUserIDs map[int64]bool // if empty, all users are allowed
	AllowedChatIDs map[int64]bool // if empty, all chats are allowed
}

// NewPolicyService creates a new PolicyService.
func NewPolicyService(adminUserIDs, allowedUserIDs, allowedChatIDs []int64) *PolicyService {
	return &PolicyService{
		AdminUserIDs:   toSet(adminUserIDs),
		AllowedUserIDs: toSet(allowedUserIDs),
		AllowedChatIDs: toSet(allowedChatIDs),
	}
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// ParseIDList parses a comma-separated list of numeric IDs. Blank entries
// are ignored.
func ParseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IsAdmin checks if a user is an admin.
func (p *PolicyService) IsAdmin(userID int64) bool {
	return p.AdminUserIDs[userID]
}

// IsAllowed checks if a user is allowed to use the bot.
func (p *PolicyService) IsAllowed(userID int64) bool {
	if len(p.AllowedUserIDs) == 0 {
		return true
	}

	// Admins are always allowed
	if p.IsAdmin(userID) {
		return true
	}
	return p.AllowedUserIDs[userID]
}

// IsChatAllowed checks if the bot answers in a chat.
func (p *PolicyService) IsChatAllowed(chatID int64) bool {
	if len(p.AllowedChatIDs) == 0 {
		return true
	}
	return p.AllowedChatIDs[chatID]
}

// IsCommandAllowed checks if a user may run a bot command.
func (p *PolicyService) IsCommandAllowed(userID int64, command string) bool {
	if p.IsAdmin(userID) {
		return true
	}

	switch command {
	case "search", "ask", "status", "start", "help":
		return p.IsAllowed(userID)
	case "reindex":
		// Rebuilding the collection is admin only
		return false
	default:
		return false
	}
}
