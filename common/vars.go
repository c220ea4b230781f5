package common

var Version = "dev"

const (
	PackageName = "device-key-registration"
)
