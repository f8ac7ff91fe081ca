package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/suptui",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api",
		},
		Widget: WidgetConfig{
			PollIntervalSecs:   2,
			TypingDebounceSecs: 2,
			SoundEnabled:       true,
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# SUPTUI System Configuration
# Location: ~/.config/suptui/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the chat session and user config are stored
data_directory = "~/.local/share/suptui"
`
}

func GenerateUserConfigTemplate() string {
	return `# SUPTUI User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[api]
# Root URL of the support chat API
base_url = "http://localhost:8080/api"

[widget]
# How often the widget refetches the conversation, in seconds
poll_interval_secs = 2

# Quiet period before the "stopped typing" signal is sent, in seconds
typing_debounce_secs = 2

# Ring the terminal bell when the operator replies
sound_enabled = true
`
}
