package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Template returns a commented config file matching Default.
func Template() string {
	return defaultTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0o600)
}

const defaultTemplate = `# mr control-plane configuration.
# root = "/home/me/.mrserver"
repo = "` + DefaultRepoURL + `"
version = "` + DefaultVersion + `"
stop_settle = "500ms"
restart_delay = "2s"
fetch_timeout = "2m"
command_timeout = "10m"
access_url = "http://127.0.0.1:1101"

[[components]]
name = "api"
label = "Backend"
repo = "https://github.com/mrserver-org/api.git"
command = ["npm", "run", "start"]

[[components]]
name = "ui"
label = "Frontend"
repo = "https://github.com/mrserver-org/ui.git"
command = ["npm", "run", "start"]
`
