// Package clients holds the HTTP clients for the gateway's two external
// collaborators: the local image repository and remote DICOMweb servers.
package clients

// Logger interface for client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}
