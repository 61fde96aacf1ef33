// Package config persists the command line options of a build into
// .py2ifile so "py2i build --use-config" can repeat it.
package config

import (
	"io/ioutil"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openshift/py2i/pkg/api"
	"github.com/openshift/py2i/pkg/api/constants"
	utillog "github.com/openshift/py2i/pkg/util/log"
)

var log = utillog.StderrLog

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultConfigPath specifies the default location of the py2i config file
var DefaultConfigPath = constants.ConfigFile

// Flags stored outside of Config.Flags, their values do not round trip
// through the string form of the flag.
var structured = map[string]bool{
	"use-config": true,
	"env":        true,
	"label":      true,
}

// Config represents a basic serialization for the py2i build options.
type Config struct {
	ContextDir  string              `json:"contextDir"`
	Tag         string              `json:"tag,omitempty"`
	Environment api.EnvironmentList `json:"environment,omitempty"`
	Labels      map[string]string   `json:"labels,omitempty"`
	Flags       map[string]string   `json:"flags,omitempty"`
}

// Save persists the py2i command line options into a JSON file.
func Save(config *api.Config, cmd *cobra.Command) {
	c := Config{
		ContextDir:  config.ContextDir,
		Tag:         config.Tag,
		Environment: config.Environment,
		Labels:      config.Labels,
		Flags:       make(map[string]string),
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if structured[f.Name] {
			return
		}
		c.Flags[f.Name] = f.Value.String()
	})
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		log.V(1).Infof("Unable to serialize to %s: %v", DefaultConfigPath, err)
		return
	}
	if err := ioutil.WriteFile(DefaultConfigPath, data, 0644); err != nil {
		log.V(1).Infof("Unable to save %s: %v", DefaultConfigPath, err)
	}
}

// Restore loads the arguments from disk and prefills the config. Flags set
// on the command line win over the stored ones.
func Restore(config *api.Config, cmd *cobra.Command) {
	data, err := ioutil.ReadFile(DefaultConfigPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.V(1).Infof("Unable to restore %s: %v", DefaultConfigPath, err)
		}
		return
	}
	c := Config{}
	if err := json.Unmarshal(data, &c); err != nil {
		log.V(1).Infof("Unable to parse %s: %v", DefaultConfigPath, err)
		return
	}
	config.ContextDir = c.ContextDir
	config.Tag = c.Tag
	if f := cmd.Flag("env"); f == nil || !f.Changed {
		config.Environment = c.Environment
	}
	if f := cmd.Flag("label"); f == nil || !f.Changed {
		config.Labels = c.Labels
	}
	for name, value := range c.Flags {
		f := cmd.Flag(name)
		// Do not change flags that user sets. Allow overriding of stored flags.
		if f == nil || f.Changed {
			continue
		}
		if err := cmd.Flags().Set(name, value); err != nil {
			log.V(1).Infof("Unable to restore --%s=%s: %v", name, value, err)
		}
	}
}
