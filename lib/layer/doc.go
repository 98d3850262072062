// Package layer runs the SIP transport layer of the process: it binds the
// configured monitor addresses at Start, exposes the resulting provider
// registry and releases every stack at Stop.
package layer
