package version

// Version is the application version. Release builds override it with
// -ldflags "-X github.com/4ndr3jS/TravelStory/pkg/version.Version=...".
var Version = "v0.3.0"
