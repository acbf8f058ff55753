package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var errUsage = errors.New("usage error")

// config holds the settings shared by all commands. Values come from an
// optional YAML file and are overridden by flags.
type config struct {
	ConfigFile string `yaml:"-"`

	Protos      []string `yaml:"proto"`
	ImportPaths []string `yaml:"import_paths"`
	Protoset    string   `yaml:"protoset"`
	Reflect     string   `yaml:"reflect"`
	TLS         bool     `yaml:"tls"`

	Type          string `yaml:"type"`
	InFormat      string `yaml:"in_format"`
	OutFormat     string `yaml:"out_format"`
	Output        string `yaml:"output"`
	Concurrency   int    `yaml:"concurrency"`
	MaxDepth      int    `yaml:"max_depth"`
	RawBytes      bool   `yaml:"raw_bytes"`
	StringMapKeys bool   `yaml:"string_map_keys"`
	Verbose       bool   `yaml:"verbose"`
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.ConfigFile = path
	return &cfg, nil
}

// listFlag is a repeatable flag whose values may also be comma-separated.
// The first value given replaces any list loaded from a config file.
type listFlag struct {
	vals *[]string
	set  bool
}

func (f *listFlag) String() string {
	if f.vals == nil {
		return ""
	}
	return strings.Join(*f.vals, ",")
}

func (f *listFlag) Set(s string) error {
	if !f.set {
		*f.vals = nil
		f.set = true
	}
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*f.vals = append(*f.vals, v)
		}
	}
	return nil
}

func bindFlags(fs *flag.FlagSet, cfg *config, inDefault, outDefault string) {
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML file with flag defaults")
	fs.Var(&listFlag{vals: &cfg.Protos}, "proto", "`.proto` file to compile (repeatable, comma-separated)")
	fs.Var(&listFlag{vals: &cfg.ImportPaths}, "I", "import `path` for -proto (repeatable)")
	fs.StringVar(&cfg.Protoset, "protoset", cfg.Protoset, "`file` containing a serialized FileDescriptorSet")
	fs.StringVar(&cfg.Reflect, "reflect", cfg.Reflect, "`address` of a server supporting gRPC reflection")
	fs.BoolVar(&cfg.TLS, "tls", cfg.TLS, "use TLS when connecting to -reflect")
	fs.StringVar(&cfg.Type, "type", cfg.Type, "fully-qualified message `name`")
	fs.StringVar(&cfg.Output, "o", cfg.Output, "output `file` (default stdout)")
	fs.IntVar(&cfg.MaxDepth, "max-depth", cfg.MaxDepth, "maximum message nesting depth (0 for the default)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "log debug output to stderr")
	if inDefault != "" {
		if cfg.InFormat == "" {
			cfg.InFormat = inDefault
		}
		fs.StringVar(&cfg.InFormat, "in-format", cfg.InFormat, "input `format`")
	}
	if outDefault != "" {
		if cfg.OutFormat == "" {
			cfg.OutFormat = outDefault
		}
		fs.StringVar(&cfg.OutFormat, "out-format", cfg.OutFormat, "output `format`")
	}
}

// parseFlags parses args for the named command. If -config is given, the
// file's values become the defaults and the flags are parsed again on top of
// them.
func parseFlags(name string, args []string, bind func(*flag.FlagSet, *config)) (*config, []string, error) {
	newFlagSet := func(cfg *config) *flag.FlagSet {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		bind(fs, cfg)
		return fs
	}
	cfg := &config{}
	fs := newFlagSet(cfg)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if cfg.ConfigFile == "" {
		return cfg, fs.Args(), nil
	}
	fileCfg, err := loadConfig(cfg.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	fs = newFlagSet(fileCfg)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return fileCfg, fs.Args(), nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.DisableStacktrace = true
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return zcfg.Build()
}
