package instance

import "os"

// GetID returns the identifier of this register service process, used as the
// owner value of maintenance locks.
func GetID() string {
	if id := os.Getenv("REGISTER_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "register-0"
}
