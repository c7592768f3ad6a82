package version

// Version is the current version of plasticc-ingest.
// Can be overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "0.4.0"

// Name is the application name.
const Name = "plasticc-ingest"

// Description is a short description of the application.
const Description = "Download the PLAsTiCC dataset and convert it to table containers"
