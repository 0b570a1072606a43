package directory

import "sheetconsole/internal/domain/syncstate"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	FieldDepartment = "department"
	FieldGivenBy    = "givenBy"

	// userColumns is the width of a users row, columns A to H.
	userColumns = 8
)

// User is one row of the users tab. RowIndex is the 1-based sheet row.
type User struct {
	RowIndex    int    `json:"rowIndex"`
	Department  string `json:"department"`
	GivenBy     string `json:"givenBy"`
	Designation string `json:"designation"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	Role        string `json:"role"`
	Email       string `json:"email"`
	Number      string `json:"number"`
}

// RowData lays the user out in sheet column order.
func (u User) RowData() []string {
	return []string{
		u.Department,
		u.GivenBy,
		u.Designation,
		u.Username,
		u.Password,
		u.Role,
		u.Email,
		u.Number,
	}
}

// Public hides the stored password.
func (u User) Public() User {
	u.Password = ""
	return u
}

type UserForm struct {
	Department  string `json:"department"`
	GivenBy     string `json:"givenBy"`
	Designation string `json:"designation"`
	Username    string `json:"username" validate:"required,max=120"`
	Password    string `json:"password" validate:"max=200"`
	Role        string `json:"role" validate:"omitempty,oneof=admin user"`
	Email       string `json:"email" validate:"omitempty,email"`
	Number      string `json:"number" validate:"max=40"`
}

type Department struct {
	Name      string `json:"name"`
	UserCount int    `json:"userCount"`
}

// SyncStatus is the save state of the users list: the current phase and how
// the most recent write ended.
type SyncStatus struct {
	Phase       syncstate.Phase `json:"phase"`
	LastOutcome syncstate.Phase `json:"lastOutcome"`
}

type RenameResult struct {
	Field     string `json:"field"`
	OldName   string `json:"oldName"`
	NewName   string `json:"newName"`
	Affected  int    `json:"affected"`
	Persisted bool   `json:"persisted"`
}
