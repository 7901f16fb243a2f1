package plugin

// Version is the SDK version reported in plugin manifests.
const Version = "0.3.0"
