package domain

// Credentials is the transient login input. The password is never persisted.
type Credentials struct {
	Username string
	Password string
}

// LoginResult is produced once per login call.
type LoginResult struct {
	Logged bool
	Token  string
}

// Privileges granted to data endpoints.
const (
	PrivilegeCreateData = "CREATE_DATA"
	PrivilegeReadData   = "READ_DATA"
	PrivilegeUpdateData = "UPDATE_DATA"
	PrivilegeDeleteData = "DELETE_DATA"
)

// DataPrivileges lists every data privilege.
var DataPrivileges = []string{
	PrivilegeCreateData,
	PrivilegeReadData,
	PrivilegeUpdateData,
	PrivilegeDeleteData,
}
