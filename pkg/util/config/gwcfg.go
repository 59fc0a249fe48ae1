package config

// Gw holds info required to set a gateway server.
type Gw struct {
	// ID is the uuid of the gateway server.
	ID string

	// ServerAddr is the address of the gateway server.
	ServerAddr string
	// ServerPort is the port of the gateway server.
	ServerPort string
	// AdminPort is the port of the admin endpoints; health and metrics.
	AdminPort string
	// MaxConns limits the number of simultaneous client connections.
	MaxConns string

	// Region is the name of the region this gateway serves.
	Region string

	// LogLocation is the file path of gateway logging.
	// Default output path is stderr.
	LogLocation string

	// Store selects the blob store backend: mem or mysql.
	Store string
	// BlockSize is the byte capacity of one block.
	BlockSize string
	// ChunkSize is the write ceiling of one chunk in bytes.
	ChunkSize string

	// MySQLUser is the user name of the mysql database.
	MySQLUser string
	// MySQLPassword is the password of the mysql database.
	MySQLPassword string
	// MySQLHost is the host address of the mysql database.
	MySQLHost string
	// MySQLPort is the port of the mysql database.
	MySQLPort string
	// MySQLDatabase is the database name of the gateway.
	MySQLDatabase string

	// UseHTTPS uses https to communicate client applications.
	UseHTTPS string
	// Security is the container of the information related with security.
	Security Security
}
