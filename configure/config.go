package configure

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/kr/pretty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type SplitCfg struct {
	Level        string `mapstructure:"level"`
	ConfigFile   string `mapstructure:"config_file"`
	In           string `mapstructure:"in"`
	OutDir       string `mapstructure:"out_dir"`
	Mode         string `mapstructure:"mode"`
	Remux        bool   `mapstructure:"remux"`
	FFmpeg       string `mapstructure:"ffmpeg"`
	FFprobe      string `mapstructure:"ffprobe"`
	PKCheck      bool   `mapstructure:"pk_check"`
	PKDelete     bool   `mapstructure:"pk_delete"`
	PKFrames     int    `mapstructure:"pk_frames"`
	ScanCacheTTL int    `mapstructure:"scan_cache_ttl"`
}

// default config
var defaultConf = SplitCfg{
	Level:        "info",
	ConfigFile:   "flvsplit.yaml",
	OutDir:       "out",
	Mode:         "streaming",
	Remux:        false,
	FFmpeg:       "ffmpeg",
	FFprobe:      "ffprobe",
	PKCheck:      false,
	PKDelete:     false,
	PKFrames:     2,
	ScanCacheTTL: 3600,
}

var (
	Config = viper.New()

	// BypassInit can be used to bypass the init() function by setting this
	// value to True at compile time.
	// go build -ldflags "-X 'flvsplit/configure.BypassInit=true'" -o flvsplit main.go
	BypassInit string = ""
)

func initLog() {
	if l, err := log.ParseLevel(Config.GetString("level")); err == nil {
		log.SetLevel(l)
		log.SetReportCaller(l == log.DebugLevel)
	}
}

func init() {
	if BypassInit == "" {
		initDefault()
	}
}

func initDefault() {
	// Default config
	b, _ := json.Marshal(defaultConf)
	defaultConfig := bytes.NewReader(b)
	viper.SetConfigType("json")
	viper.ReadConfig(defaultConfig)
	Config.MergeConfigMap(viper.AllSettings())

	// Flags
	pflag.String("in", "", "input capture file, or a directory of .flv captures")
	pflag.String("out_dir", "out", "directory for repaired segments")
	pflag.String("mode", "streaming", "processing profile: streaming or batch")
	pflag.Bool("remux", false, "repair each segment's container metadata with ffmpeg")
	pflag.String("ffmpeg", "ffmpeg", "ffmpeg binary")
	pflag.String("ffprobe", "ffprobe", "ffprobe binary")
	pflag.Bool("pk_check", false, "detect PK split-screen sessions in output segments")
	pflag.Bool("pk_delete", false, "delete segments flagged as PK sessions")
	pflag.Int("pk_frames", 2, "frames sampled per segment for the PK check")
	pflag.Int("scan_cache_ttl", 3600, "seconds a settled file stays skipped when re-scanning a directory")
	pflag.String("config_file", "flvsplit.yaml", "configure filename")
	pflag.String("level", "info", "Log level")
	pflag.Parse()
	Config.BindPFlags(pflag.CommandLine)

	// File
	Config.SetConfigFile(Config.GetString("config_file"))
	Config.AddConfigPath(".")
	err := Config.ReadInConfig()
	if err != nil {
		log.Warning(err)
		log.Info("Using default config")
	} else {
		Config.MergeInConfig()
	}

	// Environment
	replacer := strings.NewReplacer(".", "_")
	Config.SetEnvKeyReplacer(replacer)
	Config.AllowEmptyEnv(true)
	Config.AutomaticEnv()

	// Log
	initLog()

	// Print final config
	c := SplitCfg{}
	Config.Unmarshal(&c)
	log.Debugf("Current configurations: \n%# v", pretty.Formatter(c))
}
