package profiles

import "campusmarket/internal/domain/shared/fault"

// DefaultDisplayName is shown when a user has no profile yet.
const DefaultDisplayName = "User"

var ErrProfileNotFound = fault.New(fault.KindNotFound, "profiles: not found")

type Profile struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	University  string
}

// Fallback returns the placeholder profile used when none is stored.
func Fallback(userID string) Profile {
	return Profile{UserID: userID, DisplayName: DefaultDisplayName}
}

// Name returns the display name or the default one.
func (p Profile) Name() string {
	if p.DisplayName == "" {
		return DefaultDisplayName
	}
	return p.DisplayName
}
