package commands

const (
	_etc = "/usr/local/etc/uhppoted"
	_var = "/usr/local/var/uhppoted"

	DEFAULT_CONFIG = _etc + "/sync/uhppoted-app-sync.toml"
)
