package mirror

// Authenticator provides credentials for a registry host.
type Authenticator interface {
	Authenticate(registry string) (username, password string, err error)
}

// StaticAuth returns an Authenticator with fixed credentials for every
// registry.
func StaticAuth(username, password string) Authenticator {
	return staticAuth{username: username, password: password}
}

type staticAuth struct {
	username string
	password string
}

func (a staticAuth) Authenticate(string) (string, string, error) {
	return a.username, a.password, nil
}
