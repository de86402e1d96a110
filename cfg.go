package manetsim

// cfg.go serializes experiment configurations.  A configuration file
// holds an ExperimentCfg encoded as YAML or JSON, selected by the file
// name extension, so scenarios are reproducible from an artifact
// rather than a command line.

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// usesYAML decides the encoding from a file name's extension
func usesYAML(filename string) bool {
	ext := path.Ext(filename)
	return ext == ".yaml" || ext == ".YAML" || ext == ".yml"
}

// ReadExperimentCfg builds an ExperimentCfg from the named file,
// starting from the defaults so an incomplete file is still usable
func ReadExperimentCfg(filename string) (*ExperimentCfg, error) {
	fileInfo, err := os.Stat(filename)
	if os.IsNotExist(err) || (err == nil && fileInfo.IsDir()) {
		return nil, fmt.Errorf("experiment cfg %s does not exist or cannot be read", filename)
	}
	dict, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	cfg := DfltExperimentCfg()

	// extension of input file name indicates whether we are
	// deserializing json or yaml
	if usesYAML(filename) {
		err = yaml.Unmarshal(dict, &cfg)
	} else {
		err = json.Unmarshal(dict, &cfg)
	}
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WriteExperimentCfg serializes a configuration to the named file,
// encoding selected by extension
func (cfg *ExperimentCfg) WriteExperimentCfg(filename string) error {
	var bytes []byte
	var err error

	if usesYAML(filename) {
		bytes, err = yaml.Marshal(*cfg)
	} else {
		bytes, err = json.MarshalIndent(*cfg, "", "\t")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(filename, bytes, 0644)
}
