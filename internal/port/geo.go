package port

// GeoLocator resolves a client IP to a short location label such as "São Paulo, BR".
// It returns "" when the address cannot be resolved.
type GeoLocator interface {
	Locate(ip string) string
}
