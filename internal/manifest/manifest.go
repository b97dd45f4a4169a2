package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/imamik/stackzner/internal/artifact"
	"github.com/imamik/stackzner/internal/deploy"
)

// DefaultManifestFilename is the default deployment manifest filename.
const DefaultManifestFilename = "deployment.yaml"

// Manifest is the declarative description of one deployment: the resources
// to realize and the artifact payloads to publish. The deployment's name
// and credentials live in the tool configuration, not here, so the same
// manifest can drive several deployments.
type Manifest struct {
	// Resources declares the infrastructure descriptors in manifest order.
	Resources []Resource `mapstructure:"resources" yaml:"resources"`

	// Artifacts declares the payloads published before provisioning.
	Artifacts []Artifact `mapstructure:"artifacts" yaml:"artifacts,omitempty"`
}

// Resource declares one infrastructure descriptor.
type Resource struct {
	ID        string            `mapstructure:"id" yaml:"id"`
	Kind      string            `mapstructure:"kind" yaml:"kind"`
	Config    map[string]string `mapstructure:"config" yaml:"config,omitempty"`
	DependsOn []string          `mapstructure:"depends_on" yaml:"depends_on,omitempty"`
}

// Artifact declares one payload. The content comes either from a file next
// to the manifest or inline from the manifest itself.
type Artifact struct {
	ID        string `mapstructure:"id" yaml:"id"`
	Container string `mapstructure:"container" yaml:"container"`
	Name      string `mapstructure:"name" yaml:"name"`
	File      string `mapstructure:"file" yaml:"file,omitempty"`
	Content   string `mapstructure:"content" yaml:"content,omitempty"`
	Overwrite bool   `mapstructure:"overwrite" yaml:"overwrite,omitempty"`
}

// idPattern constrains resource ids: they become part of cloud resource
// names, so they follow the same DNS-safe rules as the deployment name.
var idPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// payloadIDPattern matches the ids the artifact:// reference syntax accepts.
var payloadIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validate checks the manifest and returns a detailed error if it is
// unusable.
func (m *Manifest) Validate() error {
	if len(m.Resources) == 0 {
		return fmt.Errorf("manifest declares no resources")
	}

	ids := make(map[string]bool, len(m.Resources))
	for _, r := range m.Resources {
		if err := r.validate(); err != nil {
			return err
		}
		if ids[r.ID] {
			return fmt.Errorf("duplicate resource id %q", r.ID)
		}
		ids[r.ID] = true
	}

	for _, r := range m.Resources {
		for _, dep := range r.DependsOn {
			if dep == r.ID {
				return fmt.Errorf("resource %q depends on itself", r.ID)
			}
			if !ids[dep] {
				return fmt.Errorf("resource %q depends on undeclared resource %q", r.ID, dep)
			}
		}
	}

	payloads := make(map[string]bool, len(m.Artifacts))
	for _, a := range m.Artifacts {
		if err := a.validate(); err != nil {
			return err
		}
		if payloads[a.ID] {
			return fmt.Errorf("duplicate artifact id %q", a.ID)
		}
		payloads[a.ID] = true
	}

	for _, r := range m.Resources {
		for key, value := range r.Config {
			for _, ref := range artifact.References(value) {
				if !payloads[ref] {
					return fmt.Errorf("resource %q config %q references undeclared artifact %q", r.ID, key, ref)
				}
			}
		}
	}

	return nil
}

func (r Resource) validate() error {
	if r.ID == "" {
		return fmt.Errorf("resource without id")
	}
	if len(r.ID) > 63 || !idPattern.MatchString(r.ID) {
		return fmt.Errorf("resource id %q must be DNS-safe: lowercase alphanumeric and hyphens, starting with a letter", r.ID)
	}
	if r.Kind == "" {
		return fmt.Errorf("resource %q has no kind", r.ID)
	}
	if !deploy.Kind(r.Kind).Valid() {
		return fmt.Errorf("resource %q has unknown kind %q", r.ID, r.Kind)
	}
	return nil
}

func (a Artifact) validate() error {
	if a.ID == "" {
		return fmt.Errorf("artifact without id")
	}
	if !payloadIDPattern.MatchString(a.ID) {
		return fmt.Errorf("artifact id %q must be alphanumeric with dots, underscores, or hyphens", a.ID)
	}
	if a.Container == "" {
		return fmt.Errorf("artifact %q has no container", a.ID)
	}
	if a.Name == "" {
		return fmt.Errorf("artifact %q has no name", a.ID)
	}
	if a.File == "" && a.Content == "" {
		return fmt.Errorf("artifact %q declares neither file nor content", a.ID)
	}
	if a.File != "" && a.Content != "" {
		return fmt.Errorf("artifact %q declares both file and content", a.ID)
	}
	return nil
}

// Descriptors converts the declared resources into deploy descriptors,
// preserving manifest order.
func (m *Manifest) Descriptors() []deploy.Descriptor {
	descriptors := make([]deploy.Descriptor, 0, len(m.Resources))
	for _, r := range m.Resources {
		descriptors = append(descriptors, deploy.Descriptor{
			ID:        r.ID,
			Kind:      deploy.Kind(r.Kind),
			Config:    r.Config,
			DependsOn: r.DependsOn,
		})
	}
	return descriptors
}

// Payloads materializes the declared artifacts, reading file-backed content
// relative to baseDir (normally the manifest's directory).
func (m *Manifest) Payloads(baseDir string) ([]artifact.Payload, error) {
	payloads := make([]artifact.Payload, 0, len(m.Artifacts))
	for _, a := range m.Artifacts {
		data := []byte(a.Content)
		if a.File != "" {
			path := a.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			// #nosec G304
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading artifact %s: %w", a.ID, err)
			}
			data = content
		}
		payloads = append(payloads, artifact.Payload{
			ID:        a.ID,
			Container: a.Container,
			Name:      a.Name,
			Data:      data,
			Overwrite: a.Overwrite,
		})
	}
	return payloads, nil
}
