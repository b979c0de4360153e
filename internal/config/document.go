package config

// IO types accepted by IOType.
const (
	IOParallel = "io_parallel"
	IOStream   = "io_stream"
)

// Defaults applied to a parsed document.
const (
	DefaultBackend     = "oneAPI"
	DefaultPart        = "Agilex7"
	DefaultClockPeriod = 5
	DefaultProjectName = "myproject"
	DefaultOutputDir   = "my-hls-test"
	DefaultPrecision   = "fixed<16,6>"
)

// Document is the YAML form of a model configuration.
type Document struct {
	Backend           string              `yaml:"Backend,omitempty"`
	Part              string              `yaml:"Part,omitempty"`
	ClockPeriod       float64             `yaml:"ClockPeriod,omitempty"`
	HandshakeMode     bool                `yaml:"HandshakeMode"`
	IOType            string              `yaml:"IOType,omitempty"`
	ProjectName       string              `yaml:"ProjectName,omitempty"`
	OutputDir         string              `yaml:"OutputDir,omitempty"`
	HLSConfig         HLSConfig           `yaml:"HLSConfig"`
	WriterConfig      WriterConfig        `yaml:"WriterConfig"`
	AcceleratorConfig *AcceleratorSection `yaml:"AcceleratorConfig,omitempty"`
}

// HLSConfig holds layer configuration at three levels of precedence:
// LayerName over LayerType over Model.
type HLSConfig struct {
	Model     Section            `yaml:"Model,omitempty"`
	LayerType map[string]Section `yaml:"LayerType,omitempty"`
	LayerName map[string]Section `yaml:"LayerName,omitempty"`
}

// Section is one level of layer configuration, e.g.
// {ReuseFactor: 4, Strategy: Resource, Precision: {result: fixed<8,3>}}.
type Section map[string]any

// WriterConfig controls the emitted project.
type WriterConfig struct {
	WriteTar bool `yaml:"WriteTar"`
	// BramFactor is the weight size above which weights move to BRAM.
	BramFactor int `yaml:"BramFactor,omitempty"`
}

// AcceleratorSection selects a board for accelerator builds.
type AcceleratorSection struct {
	Board     string `yaml:"Board,omitempty"`
	NumKernel int    `yaml:"Num_Kernel,omitempty"`
	NumThread int    `yaml:"Num_Thread,omitempty"`
	Batchsize int    `yaml:"Batchsize,omitempty"`
}

func (d *Document) applyDefaults() {
	if d.Backend == "" {
		d.Backend = DefaultBackend
	}
	if d.Part == "" {
		d.Part = DefaultPart
	}
	if d.ClockPeriod == 0 {
		d.ClockPeriod = DefaultClockPeriod
	}
	if d.IOType == "" {
		d.IOType = IOParallel
	}
	if d.ProjectName == "" {
		d.ProjectName = DefaultProjectName
	}
	if d.OutputDir == "" {
		d.OutputDir = DefaultOutputDir
	}
}

func (d *Document) validate() error {
	if d.IOType != IOParallel && d.IOType != IOStream {
		return newConfigError("IOType", "must be %s or %s, got %q", IOParallel, IOStream, d.IOType)
	}
	if d.ClockPeriod < 0 {
		return newConfigError("ClockPeriod", "must be positive, got %v", d.ClockPeriod)
	}
	if d.WriterConfig.BramFactor < 0 {
		return newConfigError("WriterConfig.BramFactor", "must not be negative")
	}
	return nil
}

// clone returns a deep copy of the document's mutable parts.
func (d Document) clone() Document {
	c := d
	c.HLSConfig.Model = cloneSection(d.HLSConfig.Model)
	c.HLSConfig.LayerType = cloneSections(d.HLSConfig.LayerType)
	c.HLSConfig.LayerName = cloneSections(d.HLSConfig.LayerName)
	if d.AcceleratorConfig != nil {
		a := *d.AcceleratorConfig
		c.AcceleratorConfig = &a
	}
	return c
}

func cloneSections(m map[string]Section) map[string]Section {
	if m == nil {
		return nil
	}
	out := make(map[string]Section, len(m))
	for k, v := range m {
		out[k] = cloneSection(v)
	}
	return out
}

func cloneSection(s Section) Section {
	if s == nil {
		return nil
	}
	out := make(Section, len(s))
	for k, v := range s {
		if nested, ok := v.(map[string]any); ok {
			cp := make(map[string]any, len(nested))
			for nk, nv := range nested {
				cp[nk] = nv
			}
			v = cp
		}
		out[k] = v
	}
	return out
}
