package directory

import (
	"strings"

	"sheetconsole/internal/domain/match"
)

// FilterUsers keeps users whose username contains filter, ignoring case.
func FilterUsers(users []User, filter string) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		if match.Contains(u.Username, filter) {
			out = append(out, u)
		}
	}
	return out
}

// NextRowIndex is the row a new user is written to: one past the highest
// known row, or row 2 on an empty sheet.
func NextRowIndex(users []User) int {
	next := 2
	for _, u := range users {
		if u.RowIndex+1 > next {
			next = u.RowIndex + 1
		}
	}
	return next
}

// DepartmentNames returns distinct non-empty departments in first-seen order
// followed by extra names not already present.
func DepartmentNames(users []User, extra []string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, u := range users {
		if u.Department == "" || seen[u.Department] {
			continue
		}
		seen[u.Department] = true
		names = append(names, u.Department)
	}
	for _, name := range extra {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func CountByDepartment(users []User, names []string) []Department {
	out := make([]Department, 0, len(names))
	for _, name := range names {
		count := 0
		for _, u := range users {
			if u.Department == name {
				count++
			}
		}
		out = append(out, Department{Name: name, UserCount: count})
	}
	return out
}

func GivenByNames(users []User) []string {
	seen := make(map[string]bool)
	var names []string
	for _, u := range users {
		if u.GivenBy == "" || seen[u.GivenBy] {
			continue
		}
		seen[u.GivenBy] = true
		names = append(names, u.GivenBy)
	}
	return names
}

// renameField rewrites field from oldName to newName and returns the changed
// users.
func renameField(users []User, field, oldName, newName string) ([]User, []User) {
	var changed []User
	for i := range users {
		switch field {
		case FieldDepartment:
			if users[i].Department != oldName {
				continue
			}
			users[i].Department = newName
		case FieldGivenBy:
			if users[i].GivenBy != oldName {
				continue
			}
			users[i].GivenBy = newName
		}
		changed = append(changed, users[i])
	}
	return users, changed
}

func normalizeForm(form UserForm) (UserForm, error) {
	form.Department = strings.TrimSpace(form.Department)
	form.GivenBy = strings.TrimSpace(form.GivenBy)
	form.Designation = strings.TrimSpace(form.Designation)
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	form.Number = strings.TrimSpace(form.Number)
	form.Role = strings.ToLower(strings.TrimSpace(form.Role))
	if form.Username == "" {
		return form, ErrUsernameRequired
	}
	switch form.Role {
	case "":
		form.Role = RoleUser
	case RoleAdmin, RoleUser:
	default:
		return form, ErrInvalidRole
	}
	return form, nil
}

func (f UserForm) toUser(rowIndex int) User {
	return User{
		RowIndex:    rowIndex,
		Department:  f.Department,
		GivenBy:     f.GivenBy,
		Designation: f.Designation,
		Username:    f.Username,
		Password:    f.Password,
		Role:        f.Role,
		Email:       f.Email,
		Number:      f.Number,
	}
}
