package auth

// WildcardPermission satisfies any permission check. It is granted to
// superusers during resolution and never stored in the catalog.
const WildcardPermission = "admin:*"

const (
	PermUsersCreate       = "users:create"
	PermUsersRead         = "users:read"
	PermUsersUpdate       = "users:update"
	PermUsersDelete       = "users:delete"
	PermRolesManage       = "roles:manage"
	PermPermissionsManage = "permissions:manage"
)

// BuiltinPermissions is the seed catalog ensured at startup.
var BuiltinPermissions = []Permission{
	{Name: PermUsersCreate, Description: "Create users"},
	{Name: PermUsersRead, Description: "List and view users"},
	{Name: PermUsersUpdate, Description: "Update users"},
	{Name: PermUsersDelete, Description: "Remove users"},
	{Name: PermRolesManage, Description: "Create, update and delete roles"},
	{Name: PermPermissionsManage, Description: "Manage role permission sets"},
}
