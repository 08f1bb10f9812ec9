package rbac

// Simple default policy. Composition is an instructor tool; students have no
// surface here.
var RolePermissions = map[string][]string{
	"teacher": {
		"course:list",
		"session:open",
		"session:edit",
		"test:commit",
		"draft:discard",
	},
	"admin": {
		"*", // everything
	},
}
