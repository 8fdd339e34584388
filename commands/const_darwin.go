package commands

const (
	_etc = "/usr/local/etc/com.github.uhppoted"
	_var = "/usr/local/var/com.github.uhppoted"

	DEFAULT_CONFIG = _etc + "/sync/uhppoted-app-sync.toml"
)
