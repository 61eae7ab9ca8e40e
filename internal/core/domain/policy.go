package domain

// Capability names an administrative permission.
type Capability string

const (
	CapManageLicenses  Capability = "manage_licenses"
	CapBanMembers      Capability = "ban_members"
	CapModerateContent Capability = "moderate_content"
)

var roleCapabilities = map[Role][]Capability{
	RoleModerator: {CapModerateContent},
	RoleAdmin:     {CapManageLicenses, CapBanMembers, CapModerateContent},
}

// Can reports whether role holds capability c. Members and VIPs hold none.
func Can(role Role, c Capability) bool {
	for _, granted := range roleCapabilities[role] {
		if granted == c {
			return true
		}
	}
	return false
}
