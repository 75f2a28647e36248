package config

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Read reads a config from the given file. Environment variables referenced as ${NAME} are
// substituted before parsing.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
// Fields missing from the document keep their default values and unknown fields are an error.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	var attributes map[string]interface{}
	if err := json.NewDecoder(r).Decode(&attributes); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}

	cfg := Default()
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   cfg,
		Metadata: &md,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrapf(err, "failed to process Config")
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return nil, errors.Errorf("unknown config fields: %s", strings.Join(md.Unused, ", "))
	}
	cfg.ConfigFilePath = originalPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
