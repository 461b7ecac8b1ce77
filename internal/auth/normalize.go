package auth

import "encoding/json"

type tokenFields struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
}

func (t tokenFields) value() string {
	if t.Token != "" {
		return t.Token
	}
	return t.AccessToken
}

// extractToken finds the bearer credential in a login response: token,
// accessToken, data.token or data.accessToken.
func extractToken(raw json.RawMessage) string {
	var envelope struct {
		tokenFields
		Data *tokenFields `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	if v := envelope.value(); v != "" {
		return v
	}
	if envelope.Data != nil {
		return envelope.Data.value()
	}
	return ""
}

// parseUser finds the identity object in a response: user, data.user, data,
// or the top-level object itself. Returns nil when none carries an id or email.
func parseUser(raw json.RawMessage) *User {
	if len(raw) == 0 {
		return nil
	}

	var envelope struct {
		User *User          `json:"user"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}
	if envelope.User.valid() {
		return envelope.User
	}
	if len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		if u := parseUser(envelope.Data); u != nil {
			return u
		}
	}

	var top User
	if err := json.Unmarshal(raw, &top); err == nil && top.valid() {
		return &top
	}
	return nil
}
