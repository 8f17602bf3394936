package broker

import (
	"flag"
)

type Config struct {
	Host          string         `yaml:"host"`
	Port          int            `yaml:"port"`
	LogDir        string         `yaml:"log_dir"`
	FsyncOnAppend bool           `yaml:"fsync_on_append"`
	Topics        map[string]int `yaml:"topics"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Host, "broker.host", "localhost", "Address to bind the broker listener to.")
	f.IntVar(&cfg.Port, "broker.port", 9092, "Port to bind the broker listener to.")
	f.StringVar(&cfg.LogDir, "broker.log-dir", "./data", "Directory partition logs are written to.")
	f.BoolVar(&cfg.FsyncOnAppend, "broker.fsync-on-append", false, "Fsync the partition log after every append.")
}
