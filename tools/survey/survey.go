package survey

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/charmbracelet/huh"
	"www.velocidex.com/golang/velodeploy/config"
)

var (
	int_validator = regexp.MustCompile("^[0-9]+$")
)

func validate_int(message string) func(in string) error {
	return func(in string) error {
		if int_validator.MatchString(in) {
			return nil
		}
		return fmt.Errorf("%v: Invalid number: %v", message, in)
	}
}

func required(name string) func(in string) error {
	return func(in string) error {
		if len(in) == 0 {
			return fmt.Errorf("%v must be set", name)
		}
		return nil
	}
}

// GetInteractiveParams builds a DeploymentParameters by asking the
// user questions. Defaults come from GetDefaultConfig() so just
// pressing enter through the forms gives a working standalone
// deployment.
func GetInteractiveParams() (*config.DeploymentParameters, error) {
	params := config.GetDefaultConfig().Deployment

	bind_port := strconv.Itoa(int(params.BindPort))
	gui_port := strconv.Itoa(int(params.GUIBindPort))
	cert_years := strconv.Itoa(params.CertificateDurationYears)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Velociraptor deployment").
				Description(`
This wizard collects the deployment parameters. Nothing is
installed until all questions are answered.
`),
			huh.NewSelect[string]().
				Title("What type of deployment do you need?").
				Options(
					huh.NewOption(
						"Standalone (single host, GUI only)",
						config.DeploymentStandalone),
					huh.NewOption(
						"Server (frontend for remote clients)",
						config.DeploymentServer),
					huh.NewOption(
						"Client (agent only)",
						config.DeploymentClient),
				).
				Value(&params.DeploymentType),

			huh.NewInput().
				Title("Install directory").
				Validate(required("Install directory")).
				Value(&params.InstallDirectory),

			huh.NewInput().
				Title("Data directory").
				Value(&params.DataDirectory),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Frontend bind address").
				Value(&params.BindAddress),

			huh.NewInput().
				Title("Frontend bind port").
				Validate(validate_int("Frontend bind port")).
				Value(&bind_port),

			huh.NewInput().
				Title("GUI bind address").
				Value(&params.GUIBindAddress),

			huh.NewInput().
				Title("GUI bind port").
				Validate(validate_int("GUI bind port")).
				Value(&gui_port),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("GUI admin username").
				Validate(required("Username")).
				Value(&params.AdminUsername),

			huh.NewInput().
				Title("GUI admin password").
				EchoMode(huh.EchoModePassword).
				Value(&params.AdminPassword),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How should certificates be provisioned?").
				Options(
					huh.NewOption("Self Signed SSL",
						config.CertSelfSigned),
					huh.NewOption("Bring my own certificates",
						config.CertCustom),
					huh.NewOption(
						"Provision certificates with Lets Encrypt",
						config.CertLetsEncrypt),
				).
				Value(&params.CertificateType),
		),
	)

	err := form.Run()
	if err != nil {
		return nil, err
	}

	port, _ := strconv.Atoi(bind_port)
	params.BindPort = uint32(port)
	port, _ = strconv.Atoi(gui_port)
	params.GUIBindPort = uint32(port)

	err = askCertificateDetails(params, &cert_years)
	if err != nil {
		return nil, err
	}

	return params, params.Validate()
}

func askCertificateDetails(
	params *config.DeploymentParameters, cert_years *string) error {

	switch params.CertificateType {
	case config.CertSelfSigned:
		err := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Certificate validity (years)").
				Validate(validate_int("Certificate validity")).
				Value(cert_years),
		)).Run()
		if err != nil {
			return err
		}

		years, _ := strconv.Atoi(*cert_years)
		params.CertificateDurationYears = years

	case config.CertCustom:
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Path to the certificate file").
				Validate(required("Certificate path")).
				Value(&params.CertificatePath),
			huh.NewInput().
				Title("Path to the private key file").
				Validate(required("Private key path")).
				Value(&params.PrivateKeyPath),
		)).Run()

	case config.CertLetsEncrypt:
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Public DNS name of this server "+
					"(e.g. www.example.com)").
				Validate(required("Public DNS name")).
				Value(&params.PublicDNSName),
		)).Run()
	}

	return nil
}
