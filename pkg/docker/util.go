package docker

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/docker/distribution/reference"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/tlsconfig"
	jsoniter "github.com/json-iterator/go"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/openshift/py2i/pkg/api"
)

const (
	// defaultRegistry is the registry images without a domain are pulled from.
	defaultRegistry = "docker.io"
	// legacyDefaultRegistry is the key the Docker CLI stores Docker Hub
	// credentials under.
	legacyDefaultRegistry = "index.docker.io"
)

// AuthConfigurations maps a registry to its credentials.
type AuthConfigurations struct {
	Configs map[string]api.AuthConfig
}

type dockerConfig struct {
	Auth          string `json:"auth"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Email         string `json:"email"`
	ServerAddress string `json:"serveraddress"`
}

// GetImageName creates the name of the image with an explicit tag. A name
// that does not parse is returned unchanged for the daemon to reject.
func GetImageName(name string) string {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return name
	}
	return reference.FamiliarString(reference.TagNameOnly(named))
}

// GetImageRegistry returns the registry domain of the image.
func GetImageRegistry(name string) string {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return defaultRegistry
	}
	return reference.Domain(named)
}

// LoadImageRegistryAuth reads the registry credentials from a Docker
// configuration file. Both the config.json layout with an "auths" key and the
// legacy .dockercfg layout are understood. Unreadable input yields no
// credentials.
func LoadImageRegistryAuth(r io.Reader) *AuthConfigurations {
	var raw map[string]jsoniter.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		log.V(0).Infof("error: Unable to parse the Docker configuration: %v", err)
		return nil
	}
	if auths, ok := raw["auths"]; ok {
		raw = nil
		if err := json.Unmarshal(auths, &raw); err != nil {
			log.V(0).Infof("error: Unable to parse the Docker configuration auths: %v", err)
			return nil
		}
	}

	result := &AuthConfigurations{Configs: map[string]api.AuthConfig{}}
	for registry, value := range raw {
		var entry dockerConfig
		if err := json.Unmarshal(value, &entry); err != nil {
			log.V(2).Infof("Skipping credentials of %s: %v", registry, err)
			continue
		}
		auth := api.AuthConfig{
			Username:      entry.Username,
			Password:      entry.Password,
			Email:         entry.Email,
			ServerAddress: registry,
		}
		if len(entry.Auth) > 0 {
			decoded, err := base64.StdEncoding.DecodeString(entry.Auth)
			if err != nil {
				log.V(2).Infof("Skipping credentials of %s: %v", registry, err)
				continue
			}
			parts := strings.SplitN(string(decoded), ":", 2)
			if len(parts) != 2 {
				log.V(2).Infof("Skipping credentials of %s: malformed auth", registry)
				continue
			}
			auth.Username, auth.Password = parts[0], parts[1]
		}
		result.Configs[registryHost(registry)] = auth
	}
	log.V(5).Infof("Loaded credentials for %d registries", len(result.Configs))
	return result
}

// GetImageRegistryAuth returns the credentials of the registry hosting the
// image, or empty credentials when none are known.
func GetImageRegistryAuth(auths *AuthConfigurations, imageName string) api.AuthConfig {
	if auths == nil {
		return api.AuthConfig{}
	}
	registry := GetImageRegistry(imageName)
	candidates := []string{registry}
	if registry == defaultRegistry {
		candidates = append(candidates, legacyDefaultRegistry)
	}
	for _, c := range candidates {
		if auth, ok := auths.Configs[c]; ok {
			log.V(5).Infof("Using %s credentials for pulling %s", c, imageName)
			return auth
		}
	}
	return api.AuthConfig{}
}

// registryHost reduces a credentials key such as
// "https://index.docker.io/v1/" to its host.
func registryHost(key string) string {
	if strings.Contains(key, "://") {
		if u, err := url.Parse(key); err == nil && len(u.Host) > 0 {
			return u.Host
		}
	}
	return strings.SplitN(key, "/", 2)[0]
}

// GetDefaultDockerConfig checks relevant Docker environment variables to
// provide defaults for our command line flags
func GetDefaultDockerConfig() *api.DockerConfig {
	cfg := &api.DockerConfig{}

	if cfg.Endpoint = os.Getenv("DOCKER_HOST"); cfg.Endpoint == "" {
		cfg.Endpoint = client.DefaultDockerHost
	}

	certPath := os.Getenv("DOCKER_CERT_PATH")
	if certPath == "" {
		dir, err := homedir.Expand("~/.docker")
		if err != nil {
			dir = ".docker"
		}
		certPath = dir
	}
	cfg.CertFile = filepath.Join(certPath, "cert.pem")
	cfg.KeyFile = filepath.Join(certPath, "key.pem")
	cfg.CAFile = filepath.Join(certPath, "ca.pem")

	if tlsVerify := os.Getenv("DOCKER_TLS_VERIFY"); tlsVerify != "" {
		cfg.TLSVerify = parseBool(tlsVerify)
	}
	if tls := os.Getenv("DOCKER_TLS"); tls != "" {
		cfg.UseTLS = parseBool(tls)
	}
	return cfg
}

// DefaultDockerCfgPath returns the path of the Docker CLI configuration file.
func DefaultDockerCfgPath() string {
	if dir := os.Getenv("DOCKER_CONFIG"); dir != "" {
		return filepath.Join(dir, "config.json")
	}
	path, err := homedir.Expand("~/.docker/config.json")
	if err != nil {
		return ""
	}
	return path
}

// NewEngineAPIClient creates a new Docker engine API client.
func NewEngineAPIClient(config *api.DockerConfig) (*client.Client, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if config.UseTLS || config.TLSVerify {
		tlsc, err := tlsconfig.Client(tlsconfig.Options{
			CAFile:             config.CAFile,
			CertFile:           config.CertFile,
			KeyFile:            config.KeyFile,
			InsecureSkipVerify: !config.TLSVerify,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithHTTPClient(&http.Client{
			Transport:     &http.Transport{TLSClientConfig: tlsc},
			CheckRedirect: client.CheckRedirect,
		}))
	}
	opts = append(opts, client.WithHost(config.Endpoint))
	return client.NewClientWithOpts(opts...)
}

// NewFromConfig connects to the daemon described by the configuration and
// returns the py2i Docker interface on top of it.
func NewFromConfig(cfg *api.Config) (Docker, error) {
	c, err := NewEngineAPIClient(cfg.DockerConfig)
	if err != nil {
		return nil, err
	}
	return New(c, cfg.DockerConfig.Endpoint, cfg.PullAuthentication), nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return len(s) > 0 && s != "0"
	}
	return b
}
