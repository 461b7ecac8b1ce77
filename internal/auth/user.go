package auth

import (
	"encoding/json"
	"strings"
)

// User is the identity returned by the backend "who am I" endpoint. Only the
// fields the storefront renders are typed; the full object is kept in Raw.
type User struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Phone   string          `json:"phone,omitempty"`
	Role    string          `json:"role,omitempty"`
	Address json.RawMessage `json:"address,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	aux := struct {
		ID       json.RawMessage `json:"id"`
		MongoID  json.RawMessage `json:"_id"`
		Name     string          `json:"name"`
		FullName string          `json:"fullName"`
		Email    string          `json:"email"`
		Phone    string          `json:"phone"`
		Role     string          `json:"role"`
		Address  json.RawMessage `json:"address"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	u.ID = rawScalar(aux.ID)
	if u.ID == "" {
		u.ID = rawScalar(aux.MongoID)
	}
	u.Name = aux.Name
	if u.Name == "" {
		u.Name = aux.FullName
	}
	u.Email = aux.Email
	u.Phone = aux.Phone
	u.Role = aux.Role
	u.Address = aux.Address
	u.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (u *User) valid() bool {
	return u != nil && (u.ID != "" || u.Email != "")
}

// rawScalar renders a JSON string or number as a plain string.
func rawScalar(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}
