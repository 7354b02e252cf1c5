package intrinsics

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fluence-lang/fluence/value"
)

// Manifest is the parsed shape of a project's fluence.yaml: the entry
// file a CLI run starts from, the intrinsic libraries a project is
// allowed to `use`, and the execution timeout a host should apply to
// RunFor. project.Load (and through it embed.Engine.CompileProject) reads
// it, and the "config" intrinsic's Load method returns it to a host.
type Manifest struct {
	Entry            string   `yaml:"entry"`
	AllowedLibraries []string `yaml:"allowed_libraries"`
	TimeoutMillis    int      `yaml:"timeout_ms"`
}

// LoadManifestFile reads and parses path, resolving a relative Entry
// against the manifest's own directory so CompileProject always sees an
// absolute path regardless of the working directory a CLI was invoked
// from.
func LoadManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if m.Entry != "" && !filepath.IsAbs(m.Entry) {
		m.Entry = filepath.Join(filepath.Dir(path), m.Entry)
	}
	return &m, nil
}

func (m *Manifest) toInstance() *value.InstanceObject {
	libs := value.GetList(len(m.AllowedLibraries))
	for _, lib := range m.AllowedLibraries {
		libs.Elements = append(libs.Elements, stringRV(lib))
	}
	return &value.InstanceObject{
		TypeName: "Config",
		Fields: map[string]value.RuntimeValue{
			"entry":             stringRV(m.Entry),
			"allowed_libraries": value.NewRVObject(libs),
			"timeout_ms":        value.NewRVInt64(int64(m.TimeoutMillis)),
		},
	}
}

// Config is the "config" intrinsic library: Load reads a fluence.yaml
// manifest and returns it as a Config instance, the same file
// embed.Engine.CompileProject reads through project.Load. It is reached
// from host code (Engine.InvokeIntrinsic); no opcode calls into it.
type Config struct{}

func NewConfig() *Config { return &Config{} }

func (*Config) Name() string { return "config" }

func (*Config) Call(method string, args []value.RuntimeValue) (value.RuntimeValue, error) {
	switch method {
	case "Load":
		path, err := stringArg(args, 0)
		if err != nil {
			return value.RVNil, err
		}
		manifest, err := LoadManifestFile(path)
		if err != nil {
			return value.RVNil, err
		}
		return value.NewRVObject(manifest.toInstance()), nil
	default:
		return value.RVNil, fmt.Errorf("config: unknown method %q", method)
	}
}
