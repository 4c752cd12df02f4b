package config

// The subset of the Velociraptor configuration document we emit. The
// section names and field tags must match what the deployed binary
// expects to parse. Velocidex/yaml keys fields off json tags.

type Version struct {
	Name      string `json:"name,omitempty"`
	Version   string `json:"version,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

type ClientConfig struct {
	ServerUrls       []string `json:"server_urls,omitempty"`
	CaCertificate    string   `json:"ca_certificate,omitempty"`
	Nonce            string   `json:"nonce,omitempty"`
	WritebackDarwin  string   `json:"writeback_darwin,omitempty"`
	WritebackLinux   string   `json:"writeback_linux,omitempty"`
	WritebackWindows string   `json:"writeback_windows,omitempty"`
	UseSelfSignedSsl bool     `json:"use_self_signed_ssl,omitempty"`
}

type CAConfig struct {
	PrivateKey string `json:"private_key,omitempty"`
}

type FrontendConfig struct {
	Hostname    string `json:"hostname,omitempty"`
	BindAddress string `json:"bind_address,omitempty"`
	BindPort    uint32 `json:"bind_port,omitempty"`
	Certificate string `json:"certificate,omitempty"`
	PrivateKey  string `json:"private_key,omitempty"`
}

type GUIUser struct {
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	PasswordSalt string `json:"password_salt"`
}

type GUIConfig struct {
	BindAddress  string     `json:"bind_address,omitempty"`
	BindPort     uint32     `json:"bind_port,omitempty"`
	Certificate  string     `json:"certificate,omitempty"`
	PrivateKey   string     `json:"private_key,omitempty"`
	PublicUrl    string     `json:"public_url,omitempty"`
	InitialUsers []*GUIUser `json:"initial_users,omitempty"`
}

type DatastoreConfig struct {
	Implementation     string `json:"implementation,omitempty"`
	Location           string `json:"location,omitempty"`
	FilestoreDirectory string `json:"filestore_directory,omitempty"`
}

type VelociraptorConfig struct {
	Version           *Version         `json:"version,omitempty"`
	Client            *ClientConfig    `json:"Client,omitempty"`
	CA                *CAConfig        `json:"CA,omitempty"`
	Frontend          *FrontendConfig  `json:"Frontend,omitempty"`
	GUI               *GUIConfig       `json:"GUI,omitempty"`
	Datastore         *DatastoreConfig `json:"Datastore,omitempty"`
	Logging           *LoggingConfig   `json:"Logging,omitempty"`
	AutocertDomain    string           `json:"autocert_domain,omitempty"`
	AutocertCertCache string           `json:"autocert_cert_cache,omitempty"`
}
