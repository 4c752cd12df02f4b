package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/Velocidex/yaml/v2"
	"www.velocidex.com/golang/velodeploy/constants"
	"www.velocidex.com/golang/velodeploy/crypto"
	"www.velocidex.com/golang/velodeploy/users"
	"www.velocidex.com/golang/velodeploy/utils"
)

// GeneratedConfig is one rendering of the deployment parameters into
// a config document the deployed binary can consume.
type GeneratedConfig struct {
	Path           string
	DeploymentType string
	RawContent     string
	Checksum       string
}

// Generate renders the parameters into a complete config document.
// This is a dry run - nothing is written until Write() is called.
// Certificates and nonces are freshly generated on each call and are
// never reused across deployments.
func Generate(params *DeploymentParameters) (*GeneratedConfig, error) {
	err := params.Validate()
	if err != nil {
		return nil, err
	}

	config_obj := &VelociraptorConfig{
		Version: &Version{
			Name:    "velociraptor",
			Version: constants.VERSION,
		},
	}

	nonce, err := makeNonce()
	if err != nil {
		return nil, err
	}

	switch params.DeploymentType {
	case DeploymentClient:
		err = compileClientConfig(params, config_obj, nonce)

	default:
		err = compileServerConfig(params, config_obj, nonce)
	}
	if err != nil {
		return nil, err
	}

	serialized, err := yaml.Marshal(config_obj)
	if err != nil {
		return nil, err
	}

	checksum := sha256.Sum256(serialized)

	return &GeneratedConfig{
		Path:           params.ConfigPath(),
		DeploymentType: params.DeploymentType,
		RawContent:     string(serialized),
		Checksum:       hex.EncodeToString(checksum[:]),
	}, nil
}

func compileServerConfig(
	params *DeploymentParameters,
	config_obj *VelociraptorConfig, nonce string) error {

	hostname := params.PublicDNSName
	if hostname == "" {
		hostname = params.BindAddress
	}

	// A wildcard bind is not a reachable URL.
	if hostname == "" || hostname == "0.0.0.0" {
		hostname = "localhost"
	}

	config_obj.Client = &ClientConfig{
		ServerUrls: []string{
			fmt.Sprintf("https://%s:%d/", hostname, params.BindPort),
		},
		Nonce: nonce,
	}

	frontend_bundle, gui_bundle, err := getCertificates(params, config_obj)
	if err != nil {
		return err
	}

	config_obj.GUI = &GUIConfig{
		BindAddress: params.GUIBindAddress,
		BindPort:    params.GUIBindPort,
	}
	if gui_bundle != nil {
		config_obj.GUI.Certificate = gui_bundle.Cert
		config_obj.GUI.PrivateKey = gui_bundle.PrivateKey
	}

	// Standalone deployments serve the GUI only - there is no
	// network frontend and we bind to loopback by default.
	if params.DeploymentType == DeploymentStandalone {
		if config_obj.GUI.BindAddress == "" {
			config_obj.GUI.BindAddress = "127.0.0.1"
		}
	} else {
		config_obj.Frontend = &FrontendConfig{
			Hostname:    hostname,
			BindAddress: params.BindAddress,
			BindPort:    params.BindPort,
		}
		if frontend_bundle != nil {
			config_obj.Frontend.Certificate = frontend_bundle.Cert
			config_obj.Frontend.PrivateKey = frontend_bundle.PrivateKey
		}
	}

	data_dir := params.DataDirectory
	if data_dir == "" {
		data_dir = filepath.Join(params.InstallDirectory, "data")
	}

	config_obj.Datastore = &DatastoreConfig{
		Implementation:     "FileBaseDataStore",
		Location:           data_dir,
		FilestoreDirectory: data_dir,
	}

	config_obj.Logging = &LoggingConfig{
		OutputDirectory:          filepath.Join(data_dir, "logs"),
		SeparateLogsPerComponent: true,
	}

	return addAdminUser(params, config_obj)
}

func compileClientConfig(
	params *DeploymentParameters,
	config_obj *VelociraptorConfig, nonce string) error {

	hostname := params.PublicDNSName
	if hostname == "" {
		hostname = params.BindAddress
	}

	// A wildcard bind is not a reachable URL.
	if hostname == "" || hostname == "0.0.0.0" {
		hostname = "localhost"
	}

	client := &ClientConfig{
		ServerUrls: []string{
			fmt.Sprintf("https://%s:%d/", hostname, params.BindPort),
		},
		Nonce:            nonce,
		WritebackDarwin:  "/etc/velociraptor.writeback.yaml",
		WritebackLinux:   "/etc/velociraptor.writeback.yaml",
		WritebackWindows: "$ProgramFiles\\Velociraptor\\velociraptor.writeback.yaml",
	}

	switch params.CertificateType {
	case CertSelfSigned:
		client.UseSelfSignedSsl = true

		// Client only deployments enroll against an existing
		// server, so the CA certificate comes from a file when
		// one is supplied.
		if params.CertificatePath != "" {
			pem, err := ioutil.ReadFile(params.CertificatePath)
			if err != nil {
				return utils.Wrapf(utils.IOError,
					"Unable to read CA certificate %v: %v",
					params.CertificatePath, err)
			}
			client.CaCertificate = string(pem)
		}

	case CertCustom:
		pem, err := ioutil.ReadFile(params.CertificatePath)
		if err != nil {
			return utils.Wrapf(utils.IOError,
				"Unable to read CA certificate %v: %v",
				params.CertificatePath, err)
		}
		client.CaCertificate = string(pem)
	}

	config_obj.Client = client
	return nil
}

// getCertificates provisions the frontend and GUI certificates
// according to the configured certificate type.
func getCertificates(
	params *DeploymentParameters,
	config_obj *VelociraptorConfig) (frontend, gui *crypto.CertBundle, err error) {

	switch params.CertificateType {
	case CertSelfSigned:
		duration := time.Duration(params.CertificateDurationYears) *
			365 * 24 * time.Hour

		ca_bundle, err := crypto.GenerateCACert(2048)
		if err != nil {
			return nil, nil, fmt.Errorf("Unable to create CA cert: %w", err)
		}

		config_obj.Client.CaCertificate = ca_bundle.Cert
		config_obj.Client.UseSelfSignedSsl = true
		config_obj.CA = &CAConfig{PrivateKey: ca_bundle.PrivateKey}

		// Frontend certificates must have a constant common
		// name - clients will refuse to talk with another
		// common name.
		frontend, err = crypto.GenerateServerCert(
			ca_bundle, "VelociraptorServer",
			params.OrganizationName, duration)
		if err != nil {
			return nil, nil, fmt.Errorf(
				"Unable to create Frontend cert: %w", err)
		}

		gui, err = crypto.GenerateServerCert(
			ca_bundle, "VelociraptorGUI",
			params.OrganizationName, duration)
		if err != nil {
			return nil, nil, fmt.Errorf(
				"Unable to create GUI cert: %w", err)
		}

		return frontend, gui, nil

	case CertCustom:
		cert_pem, err := ioutil.ReadFile(params.CertificatePath)
		if err != nil {
			return nil, nil, utils.Wrapf(utils.IOError,
				"Unable to read certificate %v: %v",
				params.CertificatePath, err)
		}

		key_pem, err := ioutil.ReadFile(params.PrivateKeyPath)
		if err != nil {
			return nil, nil, utils.Wrapf(utils.IOError,
				"Unable to read private key %v: %v",
				params.PrivateKeyPath, err)
		}

		bundle := &crypto.CertBundle{
			Cert:       string(cert_pem),
			PrivateKey: string(key_pem),
		}
		config_obj.Client.CaCertificate = bundle.Cert
		return bundle, bundle, nil

	case CertLetsEncrypt:
		// Certificates are provisioned at runtime by the
		// deployed binary itself.
		config_obj.AutocertDomain = params.PublicDNSName
		config_obj.AutocertCertCache = params.DataDirectory
		return nil, nil, nil
	}

	return nil, nil, nil
}

func addAdminUser(
	params *DeploymentParameters,
	config_obj *VelociraptorConfig) error {

	user_record, err := users.NewUserRecord(params.AdminUsername)
	if err != nil {
		return err
	}

	users.SetPassword(user_record, params.AdminPassword)

	config_obj.GUI.InitialUsers = append(
		config_obj.GUI.InitialUsers,
		&GUIUser{
			Name:         user_record.Name,
			PasswordHash: hex.EncodeToString(user_record.PasswordHash),
			PasswordSalt: hex.EncodeToString(user_record.PasswordSalt),
		})

	return nil
}

func makeNonce() (string, error) {
	nonce := make([]byte, 8)
	_, err := rand.Read(nonce)
	if err != nil {
		return "", fmt.Errorf("Unable to create nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce), nil
}

// Write persists the rendered document. The containing directory is
// created if needed.
func (self *GeneratedConfig) Write() error {
	err := os.MkdirAll(filepath.Dir(self.Path), 0700)
	if err != nil {
		return utils.Wrapf(utils.IOError,
			"Unable to create %v: %v", filepath.Dir(self.Path), err)
	}

	// The document embeds private keys - keep it owner readable
	// only.
	err = ioutil.WriteFile(self.Path, []byte(self.RawContent), 0600)
	if err != nil {
		return utils.Wrapf(utils.IOError,
			"Unable to write %v: %v", self.Path, err)
	}
	return nil
}

// Summary returns the reviewable highlights of the document without
// any secret material.
func (self *GeneratedConfig) Summary() *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Path", self.Path).
		Set("DeploymentType", self.DeploymentType).
		Set("Size", len(self.RawContent)).
		Set("Checksum", self.Checksum)
}
