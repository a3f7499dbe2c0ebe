package domain

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// User is a stored account. PasswordSecret holds a bcrypt hash and must
// never leave the server.
type User struct {
	ID             string `json:"id"`
	Login          string `json:"login"`
	PasswordSecret string `json:"passwordSecret"`
	Role           Role   `json:"role"`
}

// Summary is the public view of an account.
type Summary struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Login: u.Login}
}
