package fixpoint

// Version is the release of the library and CLI. Overridden at build time with
// -ldflags "-X github.com/aretw0/fixpoint.Version=...".
var Version = "0.1.0-dev"
