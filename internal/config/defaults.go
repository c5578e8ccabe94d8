package config

const (
	defaultConfigPath          = "~/.config/kubeport/config.toml"
	defaultSocketDir           = "/tmp"
	defaultSocketExt           = "sock"
	defaultLogDir              = "~/.local/state/kubeport/logs"
	defaultKubectlBinary       = "kubectl"
	defaultRestart             = RestartNever
	defaultRestartDelaySeconds = 2
	defaultStopTimeoutSeconds  = 5
	defaultConnectAttempts     = 15
	defaultConnectDelayMS      = 500
	defaultDisconnectAttempts  = 70
	defaultDisconnectDelayMS   = 100
	defaultPollIntervalMS      = 100
	defaultIdleTimeoutSeconds  = 30
	defaultLogFormat           = "json"
	defaultLogLevel            = "info"
)

// Restart policies accepted by supervisor.restart.
const (
	RestartNever  = "never"
	RestartOnExit = "on-exit"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SocketDir: defaultSocketDir,
			SocketExt: defaultSocketExt,
			LogDir:    defaultLogDir,
		},
		Kubectl: Kubectl{
			Binary: defaultKubectlBinary,
		},
		Supervisor: Supervisor{
			Restart:             defaultRestart,
			RestartDelaySeconds: defaultRestartDelaySeconds,
			StopTimeoutSeconds:  defaultStopTimeoutSeconds,
		},
		Client: Client{
			ConnectAttempts:    defaultConnectAttempts,
			ConnectDelayMS:     defaultConnectDelayMS,
			DisconnectAttempts: defaultDisconnectAttempts,
			DisconnectDelayMS:  defaultDisconnectDelayMS,
		},
		Server: Server{
			PollIntervalMS:     defaultPollIntervalMS,
			IdleTimeoutSeconds: defaultIdleTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
