package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
)

// Environment variables consulted for the database connection
const (
	DATABASE_URL      = "DATABASE_URL"
	VCAP_SERVICES     = "VCAP_SERVICES"
	PostgresService   = "pz-postgres"
	postgresURIKey    = "uri"
	postgresSSLOption = "sslmode"
)

// ErrNoDatabase is returned when neither DATABASE_URL nor a VCAP postgres
// service is configured
var ErrNoDatabase = errors.New("no database configured")

// ParseVcapServices parses raw JSON VCAP_SERVICES into a useable object
func ParseVcapServices(data []byte) (*VcapServices, error) {
	services := VcapServices{}
	err := json.Unmarshal(data, &services)
	return &services, err
}

// VcapServices is a parsed VCAP_SERVICES JSON configuration
type VcapServices map[string][]VcapService

// FindServiceByName finds a service within VCAP_SERVICES, wherever it is nestled
func (s VcapServices) FindServiceByName(name string) *VcapService {
	for _, serviceArray := range s {
		for _, service := range serviceArray {
			if service.Name == name {
				return &service
			}
		}
	}
	return nil
}

// GetServiceNames lists the names of all services found
func (s VcapServices) GetServiceNames() []string {
	names := []string{}
	for _, serviceArray := range s {
		for _, service := range serviceArray {
			names = append(names, service.Name)
		}
	}
	return names
}

// VcapService is a parsed individual VCAP service; not all fields are parsed here
type VcapService struct {
	Name        string          `json:"name"`
	Credentials VcapCredentials `json:"credentials"`
}

// VcapCredentials is a parsed map of VCAP credentials for a service
type VcapCredentials map[string]interface{}

// String recovers the value at the given key, assuming it is a string
func (c VcapCredentials) String(key string) (string, error) {
	if val, ok := c[key]; !ok {
		return "", fmt.Errorf("Credential key does not exist: %s", key)
	} else if valStr, ok := val.(string); ok {
		return valStr, nil
	} else {
		return "", fmt.Errorf("Could not convert value to string: key=%s, value=%v", key, val)
	}
}

// GetDatabaseURL resolves the postgres connection string from DATABASE_URL,
// falling back on the pz-postgres VCAP service. ErrNoDatabase means nothing
// is configured at all.
func GetDatabaseURL(ctx LogContext) (string, error) {
	connStr := os.Getenv(DATABASE_URL)
	if connStr == "" {
		rawServices := os.Getenv(VCAP_SERVICES)
		if rawServices == "" {
			return "", ErrNoDatabase
		}
		LogInfo(ctx, "No DB connection found in DATABASE_URL, checking VCAP_SERVICES")
		services, err := ParseVcapServices([]byte(rawServices))
		if err != nil {
			return "", errors.New("Could not get DB connection from VCAP_SERVICES (no valid VCAP_SERVICES found): " + err.Error())
		}
		service := services.FindServiceByName(PostgresService)
		if service == nil {
			return "", fmt.Errorf("Could not get DB connection from VCAP_SERVICES ('%s' service not found); available services: %v",
				PostgresService, services.GetServiceNames())
		}
		if connStr, err = service.Credentials.String(postgresURIKey); err != nil {
			return "", errors.New("Could not get DB connection from VCAP_SERVICES (error getting URI string): " + err.Error())
		}
	}

	dbURI, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("Could not parse database URL: %v", err)
	}
	// XXX: pq expects SSL to be enabled if not explicitly disabled
	params := dbURI.Query()
	if params.Get(postgresSSLOption) == "" {
		params.Set(postgresSSLOption, "disable")
	}
	dbURI.RawQuery = params.Encode()
	return dbURI.String(), nil
}
