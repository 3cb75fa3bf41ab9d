package rbac

// Role names. Keep these stable; they are carried in access tokens.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
