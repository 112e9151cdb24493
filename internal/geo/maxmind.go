// Package geo resolves client IPs to coarse locations for the audit log.
package geo

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/maxminddb-golang"

	"docsign/internal/port"
)

type cityRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Subdivisions []struct {
		IsoCode string `maxminddb:"iso_code"`
	} `maxminddb:"subdivisions"`
	Country struct {
		IsoCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// MaxMind reads a GeoLite2/GeoIP2 City database.
type MaxMind struct {
	reader *maxminddb.Reader
}

// Open opens the MaxMind database at path.
func Open(path string) (*MaxMind, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geo database: %w", err)
	}
	return &MaxMind{reader: reader}, nil
}

var _ port.GeoLocator = (*MaxMind)(nil)

// Locate returns "City, SP, BR" style labels, omitting unknown parts.
func (m *MaxMind) Locate(ip string) string {
	addr := net.ParseIP(ip)
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() {
		return ""
	}
	var rec cityRecord
	if err := m.reader.Lookup(addr, &rec); err != nil {
		return ""
	}

	var parts []string
	if name := rec.City.Names["en"]; name != "" {
		parts = append(parts, name)
	}
	if len(rec.Subdivisions) > 0 && rec.Subdivisions[0].IsoCode != "" {
		parts = append(parts, rec.Subdivisions[0].IsoCode)
	}
	if rec.Country.IsoCode != "" {
		parts = append(parts, rec.Country.IsoCode)
	}
	return strings.Join(parts, ", ")
}

// Close releases the database.
func (m *MaxMind) Close() error {
	return m.reader.Close()
}

// Nop resolves nothing. It is used when no database is configured.
type Nop struct{}

func (Nop) Locate(string) string { return "" }
