package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/coachtui",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Server: ServerConfig{
			URL:          "http://localhost:8081",
			DefaultModel: "gemini-2.5-flash",
		},
		ProviderDomains: DefaultProviderDomains(),
	}
}

// DefaultProviderDomains is the allowlist for authorization redirects.
// Only URLs on these hosts (or their subdomains) are ever navigated to.
func DefaultProviderDomains() []string {
	return []string{
		"strava.com",
		"fitbit.com",
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Coachtui System Configuration
# Location: ~/.config/coachtui/settings.toml
# This file uses TOML format: https://toml.io

# Directory where local state (signal store, selected conversation) is kept
data_directory = "~/.local/share/coachtui"
`
}

func GenerateUserConfigTemplate() string {
	return `# Coachtui User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[server]
# Dashboard server base URL
url = "http://localhost:8081"

# API token for the dashboard server (or set COACHTUI_TOKEN)
token = ""

# Default model for new conversations
default_model = "gemini-2.5-flash"

# Default system prompt for new conversations (optional)
# Example: "You are an encouraging triathlon coach."
default_system_prompt = ""

# Fitness provider domains eligible for authorization redirects.
# Leave empty to use the built-in list (strava.com, fitbit.com).
provider_domains = []
`
}
