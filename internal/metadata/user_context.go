package metadata

// UserContext is the authenticated admin API caller, set by auth middleware.
type UserContext struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// HasRole checks whether the user has a specific role.
func (u *UserContext) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanManageOptions reports whether the user may change configuration.
// Administrators always can; editors are limited to options pages.
func (u *UserContext) CanManageOptions(kind Kind) bool {
	if u.HasRole("administrator") || u.HasRole("admin") {
		return true
	}
	return kind == KindOptionsPage && u.HasRole("editor")
}
