package domain

// Session is the client's record of its authentication status. Token and
// Identity are either both set or both empty.
type Session struct {
	Token    string
	Identity string
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Complete reports whether both fields are present.
func (s Session) Complete() bool {
	return s.Token != "" && s.Identity != ""
}
