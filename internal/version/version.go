package version

// Version is the build version, overridable at link time.
var Version = "0.1.0"
