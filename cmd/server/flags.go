package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/inferloop/privsynth/pkg/constants"
)

type Config struct {
	Port        int
	Host        string
	LogLevel    string
	LogFormat   string
	InputFile   string
	PostgresDSN string
	Table       string
	Columns     string
	Version     bool
}

func ParseFlags() *Config {
	config := &Config{}

	flag.IntVar(&config.Port, "port", constants.DefaultServerPort, "Server port")
	flag.StringVar(&config.Host, "host", "0.0.0.0", "Server host")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&config.LogFormat, "log-format", "json", "Log format (json, text)")
	flag.StringVar(&config.InputFile, "input", "", "CSV file holding the private dataset")
	flag.StringVar(&config.PostgresDSN, "postgres", "", "Postgres DSN to load the dataset from")
	flag.StringVar(&config.Table, "table", "", "Postgres table name")
	flag.StringVar(&config.Columns, "columns", "", "Comma-separated Postgres columns to load")
	flag.BoolVar(&config.Version, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nDifferentially Private Synthesis Server\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if config.Version {
		info := GetBuildInfo()
		fmt.Printf("Version: %s\n", info.Version)
		fmt.Printf("Git Commit: %s\n", info.GitCommit)
		fmt.Printf("Build Date: %s\n", info.BuildDate)
		fmt.Printf("Go Version: %s\n", info.GoVersion)
		fmt.Printf("Platform: %s\n", info.Platform)
		os.Exit(0)
	}

	return config
}

func (c *Config) ColumnList() []string {
	if c.Columns == "" {
		return nil
	}
	parts := strings.Split(c.Columns, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
