package instance

import "os"

// GetID identifies the running process in logs. RFM_INSTANCE_ID wins, then
// the platform dyno name, then the host name.
func GetID() string {
	if id := os.Getenv("RFM_INSTANCE_ID"); id != "" {
		return id
	}
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
