package version

import "runtime"

// Set at build time via -ldflags.
var (
	AppName        = "groovebot"
	AppDescription = "A Discord bot that plays YouTube audio in voice channels"
	Version        = "dev"
	BuildDate      = ""
)

// GoVersion is the Go runtime the binary was built with.
var GoVersion = runtime.Version()
