package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eunmann/lasacres/pkg/area"
	"github.com/eunmann/lasacres/pkg/membudget"
)

// Configuration sources.
const (
	EnvPrefix         = "LASACRES"
	DefaultConfigName = "lasacres"
)

// Metadata source selection.
const (
	MetadataAuto    = "auto"
	MetadataLasinfo = "lasinfo"
	MetadataNative  = "native"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Settings is the merged configuration of one invocation. Precedence from
// low to high: defaults, config file, LASACRES_* environment, flags.
type Settings struct {
	Workers        int     `mapstructure:"workers"`
	Hull           bool    `mapstructure:"hull"`
	SampleFraction float64 `mapstructure:"sample-fraction"`
	Engine         string  `mapstructure:"engine"`
	Metadata       string  `mapstructure:"metadata"`
	Prefer64       bool    `mapstructure:"prefer64"`
	LowMemory      bool    `mapstructure:"low-memory"`
	MemoryBudget   string  `mapstructure:"memory-budget"`
	MaxFileSize    string  `mapstructure:"max-file-size"`
	OutDir         string  `mapstructure:"out"`
	Format         string  `mapstructure:"format"`
	NoProgress     bool    `mapstructure:"no-progress"`
	DownloadDir    string  `mapstructure:"download-dir"`
	KeepDownloads  bool    `mapstructure:"keep-downloads"`
	Debug          bool    `mapstructure:"debug"`
	Human          bool    `mapstructure:"human"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `mapstructure:"-"`
	// BudgetFromFlag records whether --memory-budget was given explicitly.
	BudgetFromFlag bool `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workers", 0)
	v.SetDefault("hull", false)
	v.SetDefault("sample-fraction", 1.0)
	v.SetDefault("engine", "")
	v.SetDefault("metadata", MetadataAuto)
	v.SetDefault("prefer64", true)
	v.SetDefault("low-memory", false)
	v.SetDefault("memory-budget", "")
	v.SetDefault("max-file-size", "20GiB")
	v.SetDefault("out", "")
	v.SetDefault("format", FormatJSON)
	v.SetDefault("no-progress", false)
	v.SetDefault("download-dir", "")
	v.SetDefault("keep-downloads", false)
	v.SetDefault("debug", false)
	v.SetDefault("human", false)
}

// addScanFlags registers the flags shared by scan and info.
func addScanFlags(fs *pflag.FlagSet) {
	fs.IntP("workers", "w", 0, "number of parallel workers (0 = number of CPUs)")
	fs.Bool("hull", false, "compute convex-hull acreage from sampled points")
	fs.Float64("sample-fraction", 1.0, "requested point sampling fraction in (0, 1]; large files are capped lower")
	fs.String("engine", "", "hull engine (default: best available, see 'lasacres caps')")
	fs.String("metadata", MetadataAuto, `metadata source: "auto", "lasinfo" or "native"`)
	fs.Bool("prefer64", true, "prefer lasinfo64 over lasinfo")
	fs.Bool("low-memory", false, "force the minimum sampling fraction")
	fs.String("memory-budget", "", "memory budget for point samples, e.g. 4GiB (default: half of available RAM)")
	fs.String("max-file-size", "20GiB", "skip files larger than this, 0 disables")
	fs.StringP("out", "o", "", "export records, reports, summary and manifest to this directory")
	fs.String("format", FormatJSON, `summary format: "json" or "text"`)
	fs.Bool("no-progress", false, "disable the terminal progress bar")
	fs.String("download-dir", "", "directory for s3:// downloads (default: temporary)")
	fs.Bool("keep-downloads", false, "keep s3:// downloads after the run")
}

// LoadSettings merges defaults, the config file, environment and flags.
// An explicitly named config file must exist; otherwise lasacres.yaml is
// searched in the working directory and $HOME/.config/lasacres.
func LoadSettings(cfgFile string, flags *pflag.FlagSet) (Settings, error) {
	var s Settings
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return s, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return s, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	s.ConfigFile = v.ConfigFileUsed()
	if flags != nil {
		s.BudgetFromFlag = flags.Changed("memory-budget")
	}
	return s, s.Validate()
}

// Validate checks value ranges and enumerations.
func (s Settings) Validate() error {
	var errs []error
	if s.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", s.Workers))
	}
	if s.SampleFraction <= 0 || s.SampleFraction > 1 {
		errs = append(errs, fmt.Errorf("sample-fraction must be in (0, 1], got %g", s.SampleFraction))
	}
	if !slices.Contains([]string{MetadataAuto, MetadataLasinfo, MetadataNative}, s.Metadata) {
		errs = append(errs, fmt.Errorf("metadata must be auto, lasinfo or native, got %q", s.Metadata))
	}
	if !slices.Contains([]string{FormatJSON, FormatText}, s.Format) {
		errs = append(errs, fmt.Errorf("format must be json or text, got %q", s.Format))
	}
	if s.MemoryBudget != "" {
		if _, err := membudget.ParseHumanSize(s.MemoryBudget); err != nil {
			errs = append(errs, fmt.Errorf("memory-budget: %w", err))
		}
	}
	if _, err := s.maxFileBytes(); err != nil {
		errs = append(errs, fmt.Errorf("max-file-size: %w", err))
	}
	if s.Hull && s.Engine != "" {
		if caps := area.DetectCapabilities(); !caps.Has(s.Engine) {
			errs = append(errs, fmt.Errorf("engine %q not available (have %s)", s.Engine, strings.Join(caps.Engines, ", ")))
		}
	}
	return errors.Join(errs...)
}

// maxFileBytes returns the per-file cap; -1 disables it. Empty or any zero
// size ("0", "0GiB") disables the cap.
func (s Settings) maxFileBytes() (int64, error) {
	if s.MaxFileSize == "" {
		return -1, nil
	}
	n, err := membudget.ParseHumanSize(s.MaxFileSize)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return -1, nil
	}
	return int64(n), nil
}

// budget builds the sample memory budget.
func (s Settings) budget() *membudget.Budget {
	if s.MemoryBudget == "" {
		return membudget.NewFromSystemRAM()
	}
	n, _ := membudget.ParseHumanSize(s.MemoryBudget)
	src := membudget.BudgetSourceConfig
	if s.BudgetFromFlag {
		src = membudget.BudgetSourceCLI
	}
	return membudget.New(membudget.Config{TotalBytes: n, Source: src})
}
