package permission

import "github.com/xraph/bastion/role"

var (
	commonEntries = []string{"flex", "invite", "serverinfo"}

	moderatorEntries     = []string{"blacklist", "guildinfo", "unblacklist", "userinfo"}
	supportEntries       = []string{"ticket_close", "ticket_create", "ticket_view"}
	communicationEntries = []string{"announce", "broadcast"}
	managerEntries       = []string{"rank", "setstaff", "staffinfo", "stafflist", "unrank"}
)

// DefaultCatalog returns the catalog a fresh deployment starts with.
// Dev has no entry; top-tier roles bypass the catalog.
func DefaultCatalog() map[role.Name]*Set {
	def := func(r role.Name, scoped ...string) *Set {
		sc, _ := NormalizeEntries(scoped) //nolint:errcheck // static entries
		cm, _ := NormalizeEntries(commonEntries) //nolint:errcheck // static entries
		return &Set{Role: r, Common: cm, Scoped: sc}
	}
	return map[role.Name]*Set{
		role.Moderator:     def(role.Moderator, moderatorEntries...),
		role.Support:       def(role.Support, supportEntries...),
		role.Communication: def(role.Communication, communicationEntries...),
		role.SupervisorMod: def(role.SupervisorMod, append(moderatorEntries, "manage_mod")...),
		role.SupervisorSup: def(role.SupervisorSup, append(supportEntries, "manage_sup")...),
		role.SupervisorCom: def(role.SupervisorCom, append(communicationEntries, "manage_com")...),
		role.Manager:       def(role.Manager, managerEntries...),
	}
}
